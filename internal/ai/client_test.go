package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/arin/ask-cli/internal/config"
	"github.com/arin/ask-cli/internal/stream"
)

// --- Helpers ---

func collect(t *testing.T, ch <-chan stream.Event) []stream.Event {
	t.Helper()
	var events []stream.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("timed out waiting for stream to close")
			return nil
		}
	}
}

func ndjsonServer(t *testing.T, lines ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", stream.ContentType)
		for _, l := range lines {
			fmt.Fprint(w, l)
			w.(http.Flusher).Flush()
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(url string, opts ...ClientOption) *Client {
	return NewClient(&config.Config{BaseURL: url}, opts...)
}

// --- Ask tests ---

func TestAsk_StreamsTokensThenDone(t *testing.T) {
	srv := ndjsonServer(t,
		"{\"token\":\"Hel\"}\n",
		"{\"token\":\"lo\"}\n",
		"{\"response\":\"Hello\",\"done\":true}\n",
	)

	events := collect(t, newTestClient(srv.URL).Ask(context.Background(), "greet me"))

	want := []stream.Event{stream.Token("Hel"), stream.Token("lo"), stream.Done("Hello")}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d: %v", len(want), len(events), events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d: got %+v, want %+v", i, events[i], want[i])
		}
	}
}

func TestAsk_TinyReadsSameResult(t *testing.T) {
	srv := ndjsonServer(t, "{\"token\":\"a\"}\n{\"tok", "en\":\"b\"}\n{\"response\":\"ab\",\"done\":true}")

	for _, size := range []int{1, 2, 3, 7, 4096} {
		events := collect(t, newTestClient(srv.URL, WithChunkSize(size)).Ask(context.Background(), "q"))
		if len(events) != 3 || events[2] != stream.Done("ab") {
			t.Errorf("chunk size %d: unexpected events %v", size, events)
		}
	}
}

func TestAsk_PostsMessageBody(t *testing.T) {
	var gotMethod, gotPath, gotType string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath, gotType = r.Method, r.URL.Path, r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&gotBody)
		fmt.Fprintln(w, `{"response":"ok","done":true}`)
	}))
	defer srv.Close()

	collect(t, newTestClient(srv.URL).Ask(context.Background(), "is it raining?"))

	if gotMethod != http.MethodPost {
		t.Errorf("expected POST, got %s", gotMethod)
	}
	if gotPath != "/api/chat" {
		t.Errorf("expected /api/chat, got %s", gotPath)
	}
	if gotType != "application/json" {
		t.Errorf("expected JSON content type, got %s", gotType)
	}
	if gotBody["message"] != "is it raining?" {
		t.Errorf("unexpected body: %v", gotBody)
	}
}

func TestAsk_Non200BecomesErrorEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	events := collect(t, newTestClient(srv.URL).Ask(context.Background(), "q"))

	if len(events) != 1 || events[0].Kind != stream.KindError {
		t.Fatalf("expected a single error event, got %v", events)
	}
	if !strings.Contains(events[0].Text, "502") {
		t.Errorf("error should carry the status code, got %q", events[0].Text)
	}
}

func TestAsk_UnreachableBecomesErrorEvent(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	events := collect(t, newTestClient(url).Ask(context.Background(), "q"))

	if len(events) != 1 || events[0].Kind != stream.KindError {
		t.Fatalf("expected a single error event, got %v", events)
	}
	if !strings.Contains(events[0].Text, "could not reach") {
		t.Errorf("unexpected error text: %q", events[0].Text)
	}
}

func TestAsk_RemoteErrorStopsStream(t *testing.T) {
	srv := ndjsonServer(t, "{\"token\":\"x\"}\n{\"error\":\"boom\"}\n{\"token\":\"ignored\"}\n")

	events := collect(t, newTestClient(srv.URL).Ask(context.Background(), "q"))

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %v", events)
	}
	if events[1] != stream.Failure("boom") {
		t.Errorf("expected boom failure, got %+v", events[1])
	}
}

func TestAsk_EmptyBodyNoEvents(t *testing.T) {
	srv := ndjsonServer(t)

	events := collect(t, newTestClient(srv.URL).Ask(context.Background(), "q"))
	if len(events) != 0 {
		t.Errorf("expected no events, got %v", events)
	}
}

func TestAsk_CancelClosesChannel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"token":"first"}`)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := newTestClient(srv.URL).Ask(ctx, "q")

	first := <-ch
	if first != stream.Token("first") {
		t.Fatalf("unexpected first event: %+v", first)
	}
	cancel()

	// No synthesized error after cancellation; the channel just closes.
	for ev := range ch {
		t.Errorf("unexpected event after cancel: %+v", ev)
	}
}

func TestTransportError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &TransportError{URL: "http://x/api/chat", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("TransportError should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("unexpected message: %s", err.Error())
	}

	status := &TransportError{StatusCode: 404}
	if status.Error() != "chat endpoint returned status 404" {
		t.Errorf("unexpected status message: %s", status.Error())
	}
}

// --- Ping tests ---

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	if err := newTestClient(srv.URL).Ping(context.Background()); err != nil {
		t.Fatalf("expected healthy endpoint, got %v", err)
	}

	var te *TransportError
	err := newTestClient(srv.URL + "/nested").Ping(context.Background())
	if !errors.As(err, &te) || te.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 transport error, got %v", err)
	}
}
