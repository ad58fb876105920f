package llmstream

// Kind discriminates the canonical stream event variants. Every vendor
// adapter parses its wire payloads down to this closed set; vendor concepts
// with no counterpart here are mapped to KindNone rather than leaking
// vendor-specific fields into the model.
type Kind int

const (
	// KindNone is a no-op event: heartbeats, pings and vendor lifecycle
	// chatter with no payload, as well as any payload the adapter could
	// not recognize.
	KindNone Kind = iota
	// KindMessageStart opens a vendor response and carries the upstream
	// request id.
	KindMessageStart
	// KindTextDelta carries an incremental piece of assistant text.
	KindTextDelta
	// KindToolInput carries a partial structured tool-call fragment.
	// Reserved: accumulated but not yet surfaced to clients.
	KindToolInput
	// KindUsage carries vendor-reported token accounting.
	KindUsage
	// KindError is a vendor-reported protocol error terminating the stream.
	KindError
	// KindDone is the vendor's terminal marker. It may carry a final text
	// flush and usage for vendors that fold them into the closing payload.
	KindDone
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindMessageStart:
		return "message_start"
	case KindTextDelta:
		return "text_delta"
	case KindToolInput:
		return "tool_input"
	case KindUsage:
		return "usage"
	case KindError:
		return "error"
	case KindDone:
		return "done"
	}
	return "unknown"
}

// Usage is the normalized token accounting shape. Figures are
// vendor-reported and only authoritative once the terminal usage event has
// been observed; vendors that omit usage are legal.
type Usage struct {
	RequestID    string
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// ToolFragment is a partial structured fragment of a streamed tool call.
type ToolFragment struct {
	ID        string
	Name      string
	Arguments string
}

// StreamError describes a vendor-reported error event.
type StreamError struct {
	Code    string
	Message string
}

// Event is the canonical result of parsing one upstream streaming payload.
type Event struct {
	Kind      Kind
	Text      string
	RequestID string
	Usage     *Usage
	Tool      *ToolFragment
	Err       *StreamError
}

// None is the shared no-op event.
func None() Event { return Event{Kind: KindNone} }

// TextDelta builds a text delta event.
func TextDelta(text, requestID string) Event {
	return Event{Kind: KindTextDelta, Text: text, RequestID: requestID}
}

// MessageStart builds a message start event.
func MessageStart(requestID string) Event {
	return Event{Kind: KindMessageStart, RequestID: requestID}
}

// Done builds a terminal marker event.
func Done() Event { return Event{Kind: KindDone} }

// ErrorEvent builds a vendor error event.
func ErrorEvent(code, message string) Event {
	return Event{Kind: KindError, Err: &StreamError{Code: code, Message: message}}
}
