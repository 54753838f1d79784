// Package conversation holds the ordered question/answer records of one
// conversation and applies decoded stream events to them.
package conversation

import (
	"errors"
	"time"
)

// Messages stored on records that fail without a server-provided reason.
const (
	EmptyResultMessage = "no response received"
	CancelledMessage   = "cancelled"
)

var (
	// ErrBlankQuestion is returned by Submit for empty or whitespace-only input.
	ErrBlankQuestion = errors.New("question is blank")
)

// Status is the lifecycle state of a Record.
type Status int

const (
	Pending   Status = iota // Submitted, nothing received yet.
	Streaming               // At least one token received.
	Complete                // Terminal: answer is final.
	Failed                  // Terminal: ErrorMessage is set.
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Streaming:
		return "streaming"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s accepts no further mutation.
func (s Status) Terminal() bool {
	return s == Complete || s == Failed
}

// Handle identifies a record within its Store.
type Handle string

// Record is one question and the state of its answer.
type Record struct {
	ID           Handle
	Question     string
	Answer       string
	ErrorMessage string
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Loading reports whether the presentation layer should show a loading
// indicator for the record.
func (r Record) Loading() bool {
	return r.Status == Pending || r.Status == Streaming
}
