// Package ai talks to language models: Client is the front-end's view of
// the /api/chat endpoint, and the Provider implementations are the model
// backends that endpoint is served from.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/arin/ask-cli/internal/config"
	"github.com/arin/ask-cli/internal/stream"
)

const (
	chatPath         = "/api/chat"
	healthPath       = "/healthz"
	defaultChunkSize = 4096
	pingTimeout      = 3 * time.Second
)

// Client streams answers from a chat endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	chunkSize  int
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger for request diagnostics.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// WithChunkSize sets the read size used when consuming response bodies.
func WithChunkSize(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// NewClient returns a client for the endpoint configured in cfg.
// Per-request deadlines come from the caller's context, so the HTTP
// client itself has no overall timeout.
func NewClient(cfg *config.Config, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		chunkSize:  defaultChunkSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ask posts question to the chat endpoint and returns the decoded events of
// its response. Transport failures and non-200 statuses arrive as a single
// Error event. The channel is closed after a terminal event, at end of
// stream, or once ctx is done.
func (c *Client) Ask(ctx context.Context, question string) <-chan stream.Event {
	ch := make(chan stream.Event)

	go func() {
		defer close(ch)

		send := func(ev stream.Event) bool {
			select {
			case ch <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		resp, err := c.open(ctx, question)
		if err != nil {
			if ctx.Err() == nil {
				send(stream.Failure(err.Error()))
			}
			return
		}
		defer resp.Body.Close()

		dec := stream.NewDecoder()
		buf := make([]byte, c.chunkSize)
		for {
			n, rerr := resp.Body.Read(buf)
			if n > 0 {
				for _, ev := range dec.Feed(buf[:n]) {
					if !send(ev) {
						return
					}
				}
				if dec.Terminal() {
					return
				}
			}
			if errors.Is(rerr, io.EOF) {
				break
			}
			if rerr != nil {
				if ctx.Err() != nil {
					return
				}
				c.logger.Warn("chat stream broken", "error", rerr)
				send(stream.Failure((&TransportError{URL: c.baseURL + chatPath, Cause: rerr}).Error()))
				return
			}
		}

		for _, ev := range dec.Flush() {
			if !send(ev) {
				return
			}
		}
	}()

	return ch
}

func (c *Client) open(ctx context.Context, question string) (*http.Response, error) {
	url := c.baseURL + chatPath

	body, err := json.Marshal(chatRequest{Message: question})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", stream.ContentType)

	c.logger.Debug("chat request", "url", url, "question_len", len(question))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{URL: url, Cause: err}
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		c.logger.Warn("chat endpoint rejected request", "status", resp.StatusCode)
		return nil, &TransportError{URL: url, StatusCode: resp.StatusCode}
	}
	return resp, nil
}

// Ping checks that the chat endpoint is up.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	url := c.baseURL + healthPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{URL: url, Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &TransportError{URL: url, StatusCode: resp.StatusCode}
	}
	return nil
}

// BaseURL returns the endpoint the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}
