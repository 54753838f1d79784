// Package server implements the /api/chat endpoint: it answers each
// question with a model Provider and streams the result back as
// newline-delimited JSON.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/arin/ask-cli/internal/ai"
	"github.com/arin/ask-cli/internal/stream"
	"github.com/arin/ask-cli/internal/users"
)

const (
	maxRequestBytes = 64 << 10
	shutdownTimeout = 5 * time.Second

	DefaultSystemPrompt = `You are a friendly, knowledgeable assistant embedded in a chat app.
Answer the user's question directly and concisely. Use plain language.
Keep responses short and conversational unless the user asks for detail.`
)

// Host headers identifying the user behind a request.
const (
	HeaderUserID       = "X-Telegram-User-Id"
	HeaderUsername     = "X-Telegram-Username"
	HeaderFirstName    = "X-Telegram-First-Name"
	HeaderLastName     = "X-Telegram-Last-Name"
	HeaderLanguageCode = "X-Telegram-Language-Code"
)

type chatRequest struct {
	Message string `json:"message"`
}

// Server serves chat requests.
type Server struct {
	provider     ai.Provider
	users        *users.Registry
	logger       *slog.Logger
	systemPrompt string
	limiter      *rateLimiter
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithUsers records the host user of every request in reg.
func WithUsers(reg *users.Registry) Option {
	return func(s *Server) { s.users = reg }
}

// WithRateLimit allows each client perMinute requests with the given burst.
func WithRateLimit(perMinute, burst int) Option {
	return func(s *Server) {
		if perMinute > 0 {
			s.limiter = newRateLimiter(perMinute, burst)
		}
	}
}

// WithSystemPrompt replaces the default system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(s *Server) { s.systemPrompt = prompt }
}

// New returns a server answering with provider.
func New(provider ai.Provider, opts ...Option) *Server {
	s := &Server{
		provider:     provider,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		systemPrompt: DefaultSystemPrompt,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP handler for the endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	var h http.Handler = mux
	if s.limiter != nil {
		h = s.limiter.middleware(h)
	}
	return h
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("chat endpoint listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("chat endpoint shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "ok")
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	s.recordUser(r)

	messages := []ai.Message{
		{Role: "system", Content: s.systemPrompt},
		{Role: "user", Content: req.Message},
	}

	w.Header().Set("Content-Type", stream.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	enc := stream.NewEncoder(w)

	start := time.Now()
	sp, ok := s.provider.(ai.StreamingProvider)
	if !ok {
		reply, err := s.provider.Complete(r.Context(), messages)
		if err != nil {
			s.logger.Warn("model request failed", "error", err)
			enc.Error(err.Error())
			return
		}
		enc.Done(reply)
		s.logger.Debug("answered", "took", time.Since(start), "streamed", false)
		return
	}

	var full strings.Builder
	for delta := range sp.CompleteStream(r.Context(), messages) {
		if delta.Err != nil {
			if r.Context().Err() == nil {
				s.logger.Warn("model stream failed", "error", delta.Err)
				enc.Error(delta.Err.Error())
			}
			return
		}
		if delta.Done {
			break
		}
		if delta.Token == "" {
			continue
		}
		full.WriteString(delta.Token)
		if err := enc.Token(delta.Token); err != nil {
			s.logger.Debug("client went away", "error", err)
			return
		}
	}
	if r.Context().Err() != nil {
		return
	}
	enc.Done(full.String())
	s.logger.Debug("answered", "took", time.Since(start), "streamed", true, "bytes", full.Len())
}

// recordUser upserts the host user named by the request headers. Requests
// without a user id are anonymous; registry failures never fail a request.
func (s *Server) recordUser(r *http.Request) {
	if s.users == nil {
		return
	}
	raw := r.Header.Get(HeaderUserID)
	if raw == "" {
		return
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		s.logger.Debug("ignoring malformed user id", "value", raw)
		return
	}
	u := users.User{
		TelegramID:   id,
		Username:     r.Header.Get(HeaderUsername),
		FirstName:    r.Header.Get(HeaderFirstName),
		LastName:     r.Header.Get(HeaderLastName),
		LanguageCode: r.Header.Get(HeaderLanguageCode),
	}
	if err := s.users.Save(r.Context(), u); err != nil {
		s.logger.Warn("failed to record user", "user", id, "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", stream.ContentType)
	w.WriteHeader(code)
	stream.NewEncoder(w).Error(msg)
}
