package llm

import "strings"

// Protocol names the upstream wire protocol a model speaks. The two
// protocols are not interchangeable: sending a model the wrong one fails
// the request outright.
type Protocol string

const (
	// ProtocolLegacyChat is the token-streaming chat completion protocol.
	ProtocolLegacyChat Protocol = "legacy-chat"
	// ProtocolStructuredResponse is the structured response protocol used
	// by the newer model generation.
	ProtocolStructuredResponse Protocol = "structured-response"
)

// structuredPrefix marks the model generation that only answers on the
// structured response endpoint.
const structuredPrefix = "gpt-5"

// ClassifyModel maps a model identifier to its wire protocol. This is the
// single place protocol selection happens; everything downstream switches
// on the result.
func ClassifyModel(id string) Protocol {
	if strings.HasPrefix(id, structuredPrefix) {
		return ProtocolStructuredResponse
	}
	return ProtocolLegacyChat
}

// ModelCandidate pairs a model identifier with the protocol it speaks.
type ModelCandidate struct {
	ID       string
	Protocol Protocol
}

func NewCandidate(id string) ModelCandidate {
	return ModelCandidate{ID: id, Protocol: ClassifyModel(id)}
}

// buildCandidates assembles the attempt order for one request: the
// requested model first, then the configured fallbacks. Duplicates are not
// removed; a model that appears twice is attempted twice.
func buildCandidates(requested string, fallbacks []string) []ModelCandidate {
	out := make([]ModelCandidate, 0, len(fallbacks)+1)
	if requested != "" {
		out = append(out, NewCandidate(requested))
	}
	for _, id := range fallbacks {
		out = append(out, NewCandidate(id))
	}
	return out
}
