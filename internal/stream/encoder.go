package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// ContentType is the media type of a chat response body.
const ContentType = "application/x-ndjson"

// Encoder writes Lines to a response body, one JSON object per line.
// When the writer is an http.Flusher every line is flushed immediately so
// clients see tokens as they are produced.
type Encoder struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
}

// NewEncoder returns an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	e := &Encoder{w: w}
	if f, ok := w.(http.Flusher); ok {
		e.flusher = f
	}
	return e
}

// Token writes an incremental fragment line.
func (e *Encoder) Token(text string) error {
	return e.write(Line{Token: &text})
}

// Done writes the terminal line carrying the full answer.
func (e *Encoder) Done(final string) error {
	return e.write(Line{Response: &final, Done: true})
}

// Error writes a terminal error line.
func (e *Encoder) Error(message string) error {
	return e.write(Line{Error: &message})
}

// Event writes ev in its wire form.
func (e *Encoder) Event(ev Event) error {
	switch ev.Kind {
	case KindToken:
		return e.Token(ev.Text)
	case KindDone:
		return e.Done(ev.Text)
	case KindError:
		return e.Error(ev.Text)
	default:
		return fmt.Errorf("unknown event kind %d", ev.Kind)
	}
}

func (e *Encoder) write(l Line) error {
	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("failed to marshal line: %w", err)
	}
	data = append(data, '\n')

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.w.Write(data); err != nil {
		return err
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}
