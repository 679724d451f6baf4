package llm

// EventType discriminates the variants of StreamEvent.
type EventType string

const (
	// EventContent carries one incremental text fragment.
	EventContent EventType = "content"
	// EventDone marks successful completion. No events follow it.
	EventDone EventType = "done"
	// EventError reports that no candidate produced output. No events follow it.
	EventError EventType = "error"
)

// StreamEvent is one element of the gateway's uniform output stream.
// A sequence contains zero or more Content events and at most one
// terminal event, which is always last.
type StreamEvent struct {
	Type    EventType
	Content string
	Err     string
}

func ContentEvent(text string) StreamEvent { return StreamEvent{Type: EventContent, Content: text} }

func DoneEvent() StreamEvent { return StreamEvent{Type: EventDone} }

func ErrorEvent(msg string) StreamEvent { return StreamEvent{Type: EventError, Err: msg} }

// Terminal reports whether the event ends its stream.
func (e StreamEvent) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

// EmitFunc receives stream events in order, as they are produced. A non-nil
// return tells the gateway the consumer is gone: the in-flight upstream call
// is abandoned and no further candidates are tried.
type EmitFunc func(StreamEvent) error
