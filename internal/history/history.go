// Package history keeps a log of answered questions across sessions.
// It is stored as a JSON file in the user's config directory.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/arin/ask-cli/internal/config"
	"github.com/arin/ask-cli/internal/conversation"
)

const (
	fileName   = "history.json"
	maxEntries = 500
)

var fileMu sync.Mutex

// Entry is one finished question.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer,omitempty"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
}

// Failed reports whether the question ended in an error.
func (e Entry) Failed() bool {
	return e.Status == conversation.Failed.String()
}

// FromRecord converts a terminal conversation record to an entry.
func FromRecord(rec conversation.Record) Entry {
	return Entry{
		Question: rec.Question,
		Answer:   rec.Answer,
		Status:   rec.Status.String(),
		Error:    rec.ErrorMessage,
	}
}

func historyPath() string {
	return filepath.Join(config.Dir(), fileName)
}

// Save appends entry, stamping it with the current time. Only the most
// recent entries are kept.
func Save(entry Entry) error {
	fileMu.Lock()
	defer fileMu.Unlock()

	entry.Timestamp = time.Now()

	entries, err := loadAll()
	if err != nil {
		return err
	}
	entries = append(entries, entry)
	if len(entries) > maxEntries {
		entries = entries[len(entries)-maxEntries:]
	}

	if err := os.MkdirAll(config.Dir(), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(historyPath(), data, 0o600)
}

// Load returns the most recent limit entries, or all of them when limit
// is zero.
func Load(limit int) ([]Entry, error) {
	entries, err := loadAll()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

// Clear removes the history file.
func Clear() error {
	fileMu.Lock()
	defer fileMu.Unlock()

	if err := os.Remove(historyPath()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func loadAll() ([]Entry, error) {
	data, err := os.ReadFile(historyPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("corrupt history file %s: %w", historyPath(), err)
	}
	return entries, nil
}
