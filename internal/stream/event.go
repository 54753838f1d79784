// Package stream decodes and encodes the newline-delimited JSON wire format
// spoken by the /api/chat endpoint.
package stream

// Kind tags the variant carried by an Event.
type Kind int

const (
	KindToken Kind = iota // Incremental answer fragment.
	KindDone              // Authoritative final answer.
	KindError             // Server-reported failure; terminal for the stream.
)

func (k Kind) String() string {
	switch k {
	case KindToken:
		return "token"
	case KindDone:
		return "done"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a single decoded line of a chat response.
// Text holds the token fragment, the final answer, or the error message
// depending on Kind.
type Event struct {
	Kind Kind
	Text string
}

// Token returns an incremental answer event.
func Token(text string) Event { return Event{Kind: KindToken, Text: text} }

// Done returns a terminal event carrying the final answer.
func Done(final string) Event { return Event{Kind: KindDone, Text: final} }

// Failure returns a terminal error event.
func Failure(message string) Event { return Event{Kind: KindError, Text: message} }

// Terminal reports whether no further events are meaningful after e.
func (e Event) Terminal() bool {
	return e.Kind == KindDone || e.Kind == KindError
}

// Line is the JSON object written on each line of a chat response.
type Line struct {
	Token    *string `json:"token,omitempty"`
	Response *string `json:"response,omitempty"`
	Done     bool    `json:"done,omitempty"`
	Error    *string `json:"error,omitempty"`
}
