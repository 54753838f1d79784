package conversation

import (
	"strings"
	"sync"
	"time"

	"github.com/arin/ask-cli/internal/stream"
	"github.com/google/uuid"
)

// Store owns the records of one conversation in submission order.
// Records are never removed. All methods are safe for concurrent use;
// mutations are serialized so that events for different in-flight
// questions can be applied from separate goroutines.
type Store struct {
	mu      sync.RWMutex
	records []*Record
	index   map[Handle]*Record
	subs    map[int]chan struct{}
	nextSub int
	now     func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		index: make(map[Handle]*Record),
		subs:  make(map[int]chan struct{}),
		now:   time.Now,
	}
}

// Submit appends a Pending record for text and returns its handle.
// Blank input is rejected with ErrBlankQuestion and nothing is appended.
func (s *Store) Submit(text string) (Handle, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrBlankQuestion
	}

	now := s.now()
	r := &Record{
		ID:        Handle(uuid.NewString()),
		Question:  text,
		Status:    Pending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.records = append(s.records, r)
	s.index[r.ID] = r
	s.mu.Unlock()

	s.notify()
	return r.ID, nil
}

// Apply routes ev to the record named by h. It reports whether the record
// changed; events for unknown or terminal records are ignored.
func (s *Store) Apply(h Handle, ev stream.Event) bool {
	changed := s.mutate(h, func(r *Record) {
		switch ev.Kind {
		case stream.KindToken:
			r.Answer += ev.Text
			r.Status = Streaming
		case stream.KindDone:
			r.Answer = ev.Text
			r.Status = Complete
		case stream.KindError:
			r.ErrorMessage = ev.Text
			r.Status = Failed
		}
	})
	return changed
}

// Finalize settles a record whose stream ended without a terminal event.
// A streaming record with text becomes Complete; anything else fails with
// EmptyResultMessage. Terminal records are left alone.
func (s *Store) Finalize(h Handle) bool {
	return s.mutate(h, func(r *Record) {
		if r.Status == Streaming && r.Answer != "" {
			r.Status = Complete
			return
		}
		r.ErrorMessage = EmptyResultMessage
		r.Status = Failed
	})
}

// Fail forces a non-terminal record into Failed with message.
func (s *Store) Fail(h Handle, message string) bool {
	return s.Apply(h, stream.Failure(message))
}

// FailPending fails every non-terminal record and returns how many changed.
func (s *Store) FailPending(message string) int {
	s.mu.Lock()
	n := 0
	now := s.now()
	for _, r := range s.records {
		if r.Status.Terminal() {
			continue
		}
		r.ErrorMessage = message
		r.Status = Failed
		r.UpdatedAt = now
		n++
	}
	s.mu.Unlock()

	if n > 0 {
		s.notify()
	}
	return n
}

// Get returns a copy of the record named by h.
func (s *Store) Get(h Handle) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.index[h]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// Records returns a copy of every record in display order.
func (s *Store) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.records))
	for i, r := range s.records {
		out[i] = *r
	}
	return out
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Subscribe returns a channel that receives a value after each mutation,
// plus a function that cancels the subscription. Notifications coalesce:
// a slow reader sees at most one pending signal and should re-read Records.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *Store) mutate(h Handle, fn func(r *Record)) bool {
	s.mu.Lock()
	r, ok := s.index[h]
	if !ok || r.Status.Terminal() {
		s.mu.Unlock()
		return false
	}
	fn(r)
	r.UpdatedAt = s.now()
	s.mu.Unlock()

	s.notify()
	return true
}

func (s *Store) notify() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
