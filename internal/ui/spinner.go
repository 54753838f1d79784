// Package ui provides terminal UI helpers.
package ui

import (
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
)

// Spinner wraps a terminal spinner for loading states.
type Spinner struct {
	s *spinner.Spinner
}

// NewSpinner creates a spinner on stderr with the given message.
func NewSpinner(msg string) *Spinner {
	return NewSpinnerTo(os.Stderr, msg)
}

// NewSpinnerTo creates a spinner that draws on w.
func NewSpinnerTo(w io.Writer, msg string) *Spinner {
	s := spinner.New(spinner.CharSets[14], 80*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = "  " + msg
	s.Color("cyan")
	return &Spinner{s: s}
}

// Start begins the spinner animation.
func (sp *Spinner) Start() {
	sp.s.Start()
}

// Stop halts the spinner and clears the line.
func (sp *Spinner) Stop() {
	sp.s.Stop()
}
