// Package session drives one conversation: it submits questions to the
// store, streams their answers from an Asker, and routes every event to
// the record it belongs to.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/arin/ask-cli/internal/conversation"
	"github.com/arin/ask-cli/internal/stream"
)

// TimeoutMessage is stored on records whose request exceeded the timeout.
const TimeoutMessage = "request timed out"

const defaultTimeout = 120 * time.Second

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("session closed")

// Asker streams the answer to a question. The returned channel must close
// once the answer is complete or ctx is done.
type Asker interface {
	Ask(ctx context.Context, question string) <-chan stream.Event
}

// Timing describes how long a finished question took.
type Timing struct {
	FirstToken time.Duration // Zero when no event ever arrived.
	Total      time.Duration
}

// Observer is called once per question after its record becomes terminal.
type Observer func(rec conversation.Record, timing Timing)

// Session owns a conversation store and the streams feeding it.
type Session struct {
	asker    Asker
	store    *conversation.Store
	logger   *slog.Logger
	timeout  time.Duration
	observer Observer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// Option customizes a Session.
type Option func(*Session)

// WithTimeout bounds each question, stream included.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithStore uses an existing store instead of a fresh one.
func WithStore(st *conversation.Store) Option {
	return func(s *Session) { s.store = st }
}

// WithObserver registers a callback for finished questions.
func WithObserver(fn Observer) Option {
	return func(s *Session) { s.observer = fn }
}

// New returns a session asking questions through asker.
func New(asker Asker, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		asker:   asker,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		timeout: defaultTimeout,
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = conversation.New()
	}
	return s
}

// Store returns the conversation the session writes to.
func (s *Session) Store() *conversation.Store {
	return s.store
}

// Submit records question and starts streaming its answer in the background.
// Blank questions return conversation.ErrBlankQuestion without reaching the
// asker.
func (s *Session) Submit(question string) (conversation.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}

	h, err := s.store.Submit(question)
	if err != nil {
		return "", err
	}

	s.wg.Add(1)
	go s.consume(h, question)
	return h, nil
}

func (s *Session) consume(h conversation.Handle, question string) {
	defer s.wg.Done()

	start := time.Now()
	var timing Timing

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	s.logger.Debug("question submitted", "record", h)

	for ev := range s.asker.Ask(ctx, question) {
		if timing.FirstToken == 0 {
			timing.FirstToken = time.Since(start)
		}
		s.store.Apply(h, ev)
		if ev.Kind == stream.KindError {
			s.logger.Debug("question failed", "record", h, "error", ev.Text)
			break
		}
	}
	// Unblock the asker if we stopped reading early.
	cancel()

	switch {
	case s.ctx.Err() != nil:
		s.store.Fail(h, conversation.CancelledMessage)
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		s.logger.Warn("question timed out", "record", h, "timeout", s.timeout)
		s.store.Fail(h, TimeoutMessage)
	default:
		s.store.Finalize(h)
	}
	timing.Total = time.Since(start)

	rec, ok := s.store.Get(h)
	if !ok {
		return
	}
	s.logger.Debug("question finished", "record", h, "status", rec.Status, "took", timing.Total)
	if s.observer != nil {
		s.observer(rec, timing)
	}
}

// Wait blocks until every submitted question has finished.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close stops every outstanding stream and fails the records that were
// still waiting for an answer. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	already := s.closed
	s.closed = true
	s.mu.Unlock()
	if already {
		return
	}

	s.cancel()
	s.wg.Wait()
	if n := s.store.FailPending(conversation.CancelledMessage); n > 0 {
		s.logger.Debug("cancelled outstanding questions", "count", n)
	}
}
