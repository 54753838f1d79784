package ui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/arin/ask-cli/internal/conversation"
	"github.com/arin/ask-cli/internal/insets"
	"github.com/fatih/color"
)

// pixelsPerColumn converts logical-pixel insets to terminal columns.
const pixelsPerColumn = 8

// Transcript renders conversation records to a terminal as their answers
// stream in. Only the text not yet shown is written on each call.
type Transcript struct {
	w      io.Writer
	indent string
	label  string
	seen   map[conversation.Handle]*progress

	name *color.Color
	fail *color.Color
}

type progress struct {
	shown    string
	started  bool
	finished bool
}

// NewTranscript returns a transcript writing to w. The left inset widens
// the margin.
func NewTranscript(w io.Writer, in insets.Insets) *Transcript {
	cols := 2 + int(in.Left)/pixelsPerColumn
	return &Transcript{
		w:      w,
		indent: strings.Repeat(" ", cols),
		label:  "ask → ",
		seen:   make(map[conversation.Handle]*progress),
		name:   color.New(color.FgCyan, color.Bold),
		fail:   color.New(color.FgRed),
	}
}

// Indent returns the left margin used for every line.
func (t *Transcript) Indent() string {
	return t.indent
}

// Render writes whatever rec has gained since the last call and reports
// whether the record is finished. Finished records are never written again.
func (t *Transcript) Render(rec conversation.Record) bool {
	p, ok := t.seen[rec.ID]
	if !ok {
		p = &progress{}
		t.seen[rec.ID] = p
	}
	if p.finished {
		return true
	}

	if rec.Answer != p.shown && rec.Status != conversation.Failed {
		if !p.started {
			t.name.Fprintf(t.w, "%s%s", t.indent, t.label)
			p.started = true
		}
		if strings.HasPrefix(rec.Answer, p.shown) {
			fmt.Fprint(t.w, rec.Answer[len(p.shown):])
		} else {
			// The final answer replaced what was streamed; show it whole.
			fmt.Fprintln(t.w)
			t.name.Fprintf(t.w, "%s%s", t.indent, t.label)
			fmt.Fprint(t.w, rec.Answer)
		}
		p.shown = rec.Answer
	}

	switch rec.Status {
	case conversation.Complete:
		if !p.started {
			t.name.Fprintf(t.w, "%s%s", t.indent, t.label)
		}
		if !strings.HasSuffix(p.shown, "\n") {
			fmt.Fprintln(t.w)
		}
		fmt.Fprintln(t.w)
		p.finished = true
	case conversation.Failed:
		if p.started && !strings.HasSuffix(p.shown, "\n") {
			fmt.Fprintln(t.w)
		}
		t.fail.Fprintf(t.w, "%s✗ %s\n\n", t.indent, rec.ErrorMessage)
		p.finished = true
	}
	return p.finished
}

// Follow renders record h until it is finished or ctx is done, showing sp
// while the record is still pending. It returns the last state seen.
func (t *Transcript) Follow(ctx context.Context, store *conversation.Store, h conversation.Handle, sp *Spinner) conversation.Record {
	changes, unsubscribe := store.Subscribe()
	defer unsubscribe()

	spinning := false
	stopSpinner := func() {
		if spinning {
			sp.Stop()
			spinning = false
		}
	}
	defer stopSpinner()

	for {
		rec, ok := store.Get(h)
		if !ok {
			return rec
		}
		if rec.Status == conversation.Pending {
			if sp != nil && !spinning {
				sp.Start()
				spinning = true
			}
		} else {
			stopSpinner()
		}
		t.Render(rec)
		if !rec.Loading() {
			return rec
		}

		select {
		case <-changes:
		case <-ctx.Done():
			return rec
		}
	}
}
