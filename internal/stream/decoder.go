package stream

import (
	"bytes"
	"encoding/json"
)

// Decoder turns an arbitrarily chunked response body into Events.
//
// Lines split across chunk boundaries are held back until their newline
// arrives. Lines that are not valid JSON, or match none of the known shapes,
// are skipped: intermediate fragments are expected while a stream is in
// flight. Once a Done or Error event has been produced the decoder is
// terminal and drops all further input.
//
// A Decoder is tied to one response stream and is not safe for concurrent use.
type Decoder struct {
	pending  []byte
	terminal bool
}

// NewDecoder returns a decoder with an empty line buffer.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends chunk to the pending buffer and returns the events decoded
// from every line the chunk completed.
func (d *Decoder) Feed(chunk []byte) []Event {
	if d.terminal {
		return nil
	}
	d.pending = append(d.pending, chunk...)

	var events []Event
	for !d.terminal {
		i := bytes.IndexByte(d.pending, '\n')
		if i < 0 {
			break
		}
		line := d.pending[:i]
		d.pending = d.pending[i+1:]
		if ev, ok := d.decodeLine(line); ok {
			events = append(events, ev)
		}
	}
	if d.terminal {
		d.pending = nil
	}
	return events
}

// Flush treats whatever remains in the buffer as a final line. It must be
// called once the underlying stream is exhausted.
func (d *Decoder) Flush() []Event {
	if d.terminal {
		return nil
	}
	line := d.pending
	d.pending = nil
	if ev, ok := d.decodeLine(line); ok {
		return []Event{ev}
	}
	return nil
}

// Terminal reports whether a Done or Error event has been produced.
func (d *Decoder) Terminal() bool {
	return d.terminal
}

// Decode runs a complete body through a fresh decoder.
func Decode(body []byte) []Event {
	d := NewDecoder()
	return append(d.Feed(body), d.Flush()...)
}

func (d *Decoder) decodeLine(line []byte) (Event, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Event{}, false
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return Event{}, false
	}

	if truthy(fields["done"]) {
		if final, ok := text(fields["response"]); ok {
			d.terminal = true
			return Done(final), true
		}
	}
	if tok, ok := text(fields["token"]); ok {
		return Token(tok), true
	}
	if msg, ok := text(fields["error"]); ok {
		d.terminal = true
		return Failure(msg), true
	}
	return Event{}, false
}

// text extracts a non-null field. Strings are unquoted; any other JSON value
// is taken as its literal text.
func text(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	return string(raw), true
}

// truthy mirrors JSON value truthiness: false, null, 0 and "" are falsy.
func truthy(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	default:
		return true
	}
}
