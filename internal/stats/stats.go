// Package stats tracks per-question metrics (time to first token, total
// latency, outcome) and persists them to ~/.ask-cli/stats.json.
package stats

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/arin/ask-cli/internal/config"
)

const (
	fileName   = "stats.json"
	maxRecords = 1000
)

// Record is a single instrumented question.
type Record struct {
	Timestamp    time.Time `json:"timestamp"`
	Question     string    `json:"question"`
	Status       string    `json:"status"`
	FirstTokenMs int64     `json:"first_token_ms,omitempty"`
	TotalMs      int64     `json:"total_ms"`
	Success      bool      `json:"success"`
	Subcommand   string    `json:"subcommand,omitempty"` // "ask" or "chat"
}

// NewRecord builds a record from measured durations.
func NewRecord(question, status string, firstToken, total time.Duration, success bool, subcommand string) Record {
	return Record{
		Question:     question,
		Status:       status,
		FirstTokenMs: firstToken.Milliseconds(),
		TotalMs:      total.Milliseconds(),
		Success:      success,
		Subcommand:   subcommand,
	}
}

// Summary is the aggregated stats dashboard.
type Summary struct {
	TotalQuestions  int             `json:"total_questions"`
	SuccessRate     float64         `json:"success_rate"`
	AvgFirstTokenMs int64           `json:"avg_first_token_ms"`
	AvgTotalMs      int64           `json:"avg_total_ms"`
	StatusBreakdown map[string]int  `json:"status_breakdown"`
	SubcmdBreakdown map[string]int  `json:"subcmd_breakdown"`
	TopQuestions    []QuestionCount `json:"top_questions"`
	TodayCount      int             `json:"today_count"`
	ThisWeekCount   int             `json:"this_week_count"`
}

// QuestionCount pairs a question with how often it was asked.
type QuestionCount struct {
	Question string `json:"question"`
	Count    int    `json:"count"`
}

var fileMu sync.Mutex

func statsPath() string {
	return filepath.Join(config.Dir(), fileName)
}

// Save appends a record to the stats file, stamping it with the current time.
func Save(r Record) error {
	fileMu.Lock()
	defer fileMu.Unlock()

	r.Timestamp = time.Now()

	records, _ := loadAll()
	records = append(records, r)
	if len(records) > maxRecords {
		records = records[len(records)-maxRecords:]
	}

	if err := os.MkdirAll(config.Dir(), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(statsPath(), data, 0o600)
}

// LoadAll returns all stored records.
func LoadAll() ([]Record, error) {
	return loadAll()
}

func loadAll() ([]Record, error) {
	data, err := os.ReadFile(statsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Summarize computes aggregated stats from all records.
func Summarize() (*Summary, error) {
	records, err := loadAll()
	if err != nil {
		return nil, err
	}
	s := &Summary{
		TotalQuestions:  len(records),
		StatusBreakdown: map[string]int{},
		SubcmdBreakdown: map[string]int{},
	}
	if len(records) == 0 {
		return s, nil
	}

	var totalFirst, totalAll int64
	var firstCount, successCount int
	freq := map[string]int{}
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekAgo := now.AddDate(0, 0, -7)

	for _, r := range records {
		if r.Success {
			successCount++
		}
		totalAll += r.TotalMs
		// Failures before any token carry no first-token time.
		if r.FirstTokenMs > 0 {
			totalFirst += r.FirstTokenMs
			firstCount++
		}
		if r.Status != "" {
			s.StatusBreakdown[r.Status]++
		}
		if r.Subcommand != "" {
			s.SubcmdBreakdown[r.Subcommand]++
		}
		if r.Question != "" {
			freq[r.Question]++
		}
		if !r.Timestamp.Before(today) {
			s.TodayCount++
		}
		if r.Timestamp.After(weekAgo) {
			s.ThisWeekCount++
		}
	}

	s.SuccessRate = float64(successCount) / float64(len(records)) * 100
	s.AvgTotalMs = totalAll / int64(len(records))
	if firstCount > 0 {
		s.AvgFirstTokenMs = totalFirst / int64(firstCount)
	}
	s.TopQuestions = topN(freq, 5)

	return s, nil
}

func topN(freq map[string]int, n int) []QuestionCount {
	var all []QuestionCount
	for q, count := range freq {
		all = append(all, QuestionCount{Question: q, Count: count})
	}
	// Selection sort; n is small.
	for i := 0; i < len(all) && i < n; i++ {
		maxIdx := i
		for j := i + 1; j < len(all); j++ {
			if all[j].Count > all[maxIdx].Count {
				maxIdx = j
			}
		}
		all[i], all[maxIdx] = all[maxIdx], all[i]
	}
	if len(all) > n {
		all = all[:n]
	}
	return all
}
