package llm

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is the normalized input for one completion request: an
// ordered transcript plus generation settings. The gateway treats it as
// read-only; callers assemble it once per request.
type Conversation struct {
	Messages        []Message `json:"messages"`
	Temperature     float32   `json:"temperature"`
	MaxOutputTokens int       `json:"max_output_tokens"`
}
