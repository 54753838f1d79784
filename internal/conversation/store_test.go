package conversation

import (
	"fmt"
	"sync"
	"testing"

	"github.com/arin/ask-cli/internal/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submit(t *testing.T, s *Store, q string) Handle {
	t.Helper()
	h, err := s.Submit(q)
	require.NoError(t, err)
	return h
}

func get(t *testing.T, s *Store, h Handle) Record {
	t.Helper()
	r, ok := s.Get(h)
	require.True(t, ok, "record %s not found", h)
	return r
}

func applyBody(s *Store, h Handle, body string) {
	for _, ev := range stream.Decode([]byte(body)) {
		s.Apply(h, ev)
	}
	s.Finalize(h)
}

func TestSubmit_AppendsPendingRecord(t *testing.T) {
	s := New()
	h := submit(t, s, "what is go?")

	r := get(t, s, h)
	assert.Equal(t, "what is go?", r.Question)
	assert.Equal(t, Pending, r.Status)
	assert.Empty(t, r.Answer)
	assert.True(t, r.Loading())
	assert.False(t, r.CreatedAt.IsZero())
}

func TestSubmit_BlankRejected(t *testing.T) {
	s := New()
	for _, q := range []string{"", "   ", "\t\n"} {
		h, err := s.Submit(q)
		assert.ErrorIs(t, err, ErrBlankQuestion)
		assert.Empty(t, h)
	}
	assert.Equal(t, 0, s.Len())
}

func TestSubmit_PreservesOrder(t *testing.T) {
	s := New()
	for i := 0; i < 5; i++ {
		submit(t, s, fmt.Sprintf("q%d", i))
	}
	records := s.Records()
	require.Len(t, records, 5)
	for i, r := range records {
		assert.Equal(t, fmt.Sprintf("q%d", i), r.Question)
	}
}

func TestApply_DoneWinsOverTokens(t *testing.T) {
	s := New()
	h := submit(t, s, "greet")

	applyBody(s, h, "{\"token\":\"Hel\"}\n{\"token\":\"lo\"}\n{\"response\":\"Hello\",\"done\":true}\n")

	r := get(t, s, h)
	assert.Equal(t, Complete, r.Status)
	assert.Equal(t, "Hello", r.Answer)
	assert.Empty(t, r.ErrorMessage)
}

func TestApply_TokensMoveToStreaming(t *testing.T) {
	s := New()
	h := submit(t, s, "q")

	assert.True(t, s.Apply(h, stream.Token("a")))
	assert.True(t, s.Apply(h, stream.Token("b")))

	r := get(t, s, h)
	assert.Equal(t, Streaming, r.Status)
	assert.Equal(t, "ab", r.Answer)
}

func TestApply_DoneWithoutTokens(t *testing.T) {
	s := New()
	h := submit(t, s, "q")

	assert.True(t, s.Apply(h, stream.Done("whole")))

	r := get(t, s, h)
	assert.Equal(t, Complete, r.Status)
	assert.Equal(t, "whole", r.Answer)
}

func TestFinalize_TokensOnlyCompletes(t *testing.T) {
	s := New()
	h := submit(t, s, "q")

	applyBody(s, h, "{\"token\":\"Hi\"}\n")

	r := get(t, s, h)
	assert.Equal(t, Complete, r.Status)
	assert.Equal(t, "Hi", r.Answer)
}

func TestFinalize_EmptyStreamFails(t *testing.T) {
	s := New()
	h := submit(t, s, "q")

	applyBody(s, h, "")

	r := get(t, s, h)
	assert.Equal(t, Failed, r.Status)
	assert.Equal(t, EmptyResultMessage, r.ErrorMessage)
}

func TestFinalize_EmptyTokensFail(t *testing.T) {
	s := New()
	h := submit(t, s, "q")

	s.Apply(h, stream.Token(""))
	s.Finalize(h)

	r := get(t, s, h)
	assert.Equal(t, Failed, r.Status)
	assert.Equal(t, EmptyResultMessage, r.ErrorMessage)
}

func TestFinalize_TerminalUntouched(t *testing.T) {
	s := New()
	h := submit(t, s, "q")
	s.Apply(h, stream.Done("x"))

	assert.False(t, s.Finalize(h))
	assert.Equal(t, Complete, get(t, s, h).Status)
}

func TestApply_ErrorIsTerminal(t *testing.T) {
	s := New()
	h := submit(t, s, "q")

	assert.True(t, s.Apply(h, stream.Failure("boom")))
	assert.False(t, s.Apply(h, stream.Token("late")))
	assert.False(t, s.Apply(h, stream.Done("late")))
	assert.False(t, s.Apply(h, stream.Failure("again")))

	r := get(t, s, h)
	assert.Equal(t, Failed, r.Status)
	assert.Equal(t, "boom", r.ErrorMessage)
	assert.Empty(t, r.Answer)
}

func TestApply_EventsAfterDoneIgnored(t *testing.T) {
	s := New()
	h := submit(t, s, "q")
	s.Apply(h, stream.Token("Hel"))
	s.Apply(h, stream.Done("Hello"))

	assert.False(t, s.Apply(h, stream.Token(" world")))
	assert.False(t, s.Apply(h, stream.Failure("late failure")))

	r := get(t, s, h)
	assert.Equal(t, Complete, r.Status)
	assert.Equal(t, "Hello", r.Answer)
	assert.Empty(t, r.ErrorMessage)
}

func TestApply_UnknownHandle(t *testing.T) {
	s := New()
	assert.False(t, s.Apply("nope", stream.Token("x")))
	assert.False(t, s.Finalize("nope"))
	_, ok := s.Get("nope")
	assert.False(t, ok)
}

func TestFailPending(t *testing.T) {
	s := New()
	done := submit(t, s, "a")
	streaming := submit(t, s, "b")
	pending := submit(t, s, "c")
	s.Apply(done, stream.Done("ok"))
	s.Apply(streaming, stream.Token("part"))

	assert.Equal(t, 2, s.FailPending(CancelledMessage))

	assert.Equal(t, Complete, get(t, s, done).Status)
	for _, h := range []Handle{streaming, pending} {
		r := get(t, s, h)
		assert.Equal(t, Failed, r.Status)
		assert.Equal(t, CancelledMessage, r.ErrorMessage)
		assert.False(t, r.Loading())
	}
	assert.Equal(t, 0, s.FailPending(CancelledMessage))
}

func TestChunkBoundaryInvariance(t *testing.T) {
	body := "{\"token\":\"Hel\"}\n{\"token\":\"lo\"}\n{\"response\":\"Hello\",\"done\":true}\n"

	for i := 0; i <= len(body); i++ {
		s := New()
		h := submit(t, s, "q")
		d := stream.NewDecoder()
		for _, part := range []string{body[:i], body[i:]} {
			for _, ev := range d.Feed([]byte(part)) {
				s.Apply(h, ev)
			}
		}
		for _, ev := range d.Flush() {
			s.Apply(h, ev)
		}
		s.Finalize(h)

		r := get(t, s, h)
		require.Equal(t, Complete, r.Status, "split at %d", i)
		require.Equal(t, "Hello", r.Answer, "split at %d", i)
	}
}

func TestInterleavedStreamsDoNotCrossContaminate(t *testing.T) {
	s := New()
	a := submit(t, s, "first")
	b := submit(t, s, "second")

	var wg sync.WaitGroup
	for _, tc := range []struct {
		h      Handle
		prefix string
	}{{a, "a"}, {b, "b"}} {
		wg.Add(1)
		go func(h Handle, prefix string) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				s.Apply(h, stream.Token(prefix))
			}
			s.Finalize(h)
		}(tc.h, tc.prefix)
	}
	wg.Wait()

	ra, rb := get(t, s, a), get(t, s, b)
	assert.Equal(t, Complete, ra.Status)
	assert.Equal(t, Complete, rb.Status)
	assert.NotContains(t, ra.Answer, "b")
	assert.NotContains(t, rb.Answer, "a")
	assert.Len(t, ra.Answer, 100)
	assert.Len(t, rb.Answer, 100)
}

func TestFailureInOneRecordLeavesOthers(t *testing.T) {
	s := New()
	bad := submit(t, s, "bad")
	good := submit(t, s, "good")

	s.Apply(good, stream.Token("fine"))
	s.Apply(bad, stream.Failure("boom"))
	s.Finalize(good)

	assert.Equal(t, Failed, get(t, s, bad).Status)
	assert.Equal(t, Complete, get(t, s, good).Status)
	assert.Equal(t, "fine", get(t, s, good).Answer)

	// Failed records never block new questions.
	submit(t, s, "next")
	assert.Equal(t, 3, s.Len())
}

func TestRecords_ReturnsCopies(t *testing.T) {
	s := New()
	h := submit(t, s, "q")
	records := s.Records()
	records[0].Answer = "mutated"

	assert.Empty(t, get(t, s, h).Answer)
}

func TestSubscribe_NotifiesAndCoalesces(t *testing.T) {
	s := New()
	ch, cancel := s.Subscribe()
	defer cancel()

	h := submit(t, s, "q")
	s.Apply(h, stream.Token("a"))
	s.Apply(h, stream.Token("b"))

	select {
	case <-ch:
	default:
		t.Fatal("expected a change notification")
	}
	select {
	case <-ch:
		t.Fatal("notifications should coalesce")
	default:
	}
}

func TestSubscribe_CancelClosesChannel(t *testing.T) {
	s := New()
	ch, cancel := s.Subscribe()
	cancel()
	cancel()

	_, open := <-ch
	assert.False(t, open)

	// Mutations after cancel must not panic.
	submit(t, s, "q")
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "streaming", Streaming.String())
	assert.Equal(t, "complete", Complete.String())
	assert.Equal(t, "failed", Failed.String())
	assert.True(t, Complete.Terminal())
	assert.True(t, Failed.Terminal())
	assert.False(t, Streaming.Terminal())
}
