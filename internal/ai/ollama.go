package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOllamaURL = "http://localhost:11434"
	defaultTimeout   = 60 * time.Second
	maxOllamaLine    = 1 << 20
)

// OllamaProvider implements StreamingProvider for the Ollama local API.
type OllamaProvider struct {
	model      string
	apiURL     string
	httpClient *http.Client
	stream     *http.Client
}

// NewOllamaProvider creates a provider that talks to the Ollama server at
// baseURL (empty means the local default).
func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	return &OllamaProvider{
		model:      model,
		apiURL:     strings.TrimRight(baseURL, "/") + "/api/chat",
		httpClient: &http.Client{Timeout: defaultTimeout},
		// Streams may legitimately outlive any fixed client timeout;
		// the caller's context bounds them instead.
		stream: &http.Client{},
	}
}

// Complete sends messages to Ollama and returns the response text.
func (o *OllamaProvider) Complete(ctx context.Context, messages []Message) (string, error) {
	resp, err := o.post(ctx, o.httpClient, messages, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var ollamaResp ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if ollamaResp.Error != "" {
		return "", fmt.Errorf("Ollama error: %s", ollamaResp.Error)
	}

	return strings.TrimSpace(ollamaResp.Message.Content), nil
}

// CompleteStream sends messages to Ollama with streaming enabled and emits
// one delta per generated fragment.
func (o *OllamaProvider) CompleteStream(ctx context.Context, messages []Message) <-chan StreamDelta {
	ch := make(chan StreamDelta)

	go func() {
		defer close(ch)

		send := func(d StreamDelta) bool {
			select {
			case ch <- d:
				return true
			case <-ctx.Done():
				return false
			}
		}

		resp, err := o.post(ctx, o.stream, messages, true)
		if err != nil {
			send(StreamDelta{Err: err})
			return
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxOllamaLine)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var chunk ollamaResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				send(StreamDelta{Err: fmt.Errorf("failed to parse stream chunk: %w", err)})
				return
			}
			if chunk.Error != "" {
				send(StreamDelta{Err: fmt.Errorf("Ollama error: %s", chunk.Error)})
				return
			}
			if chunk.Message.Content != "" {
				if !send(StreamDelta{Token: chunk.Message.Content}) {
					return
				}
			}
			if chunk.Done {
				send(StreamDelta{Done: true})
				return
			}
		}
		if err := scanner.Err(); err != nil {
			send(StreamDelta{Err: fmt.Errorf("failed to read stream: %w", err)})
			return
		}
		send(StreamDelta{Err: errors.New("Ollama stream ended before completion")})
	}()

	return ch
}

func (o *OllamaProvider) post(ctx context.Context, client *http.Client, messages []Message, stream bool) (*http.Response, error) {
	// Convert provider-agnostic messages to Ollama format.
	ollamaMsgs := make([]ollamaMessage, len(messages))
	for i, m := range messages {
		ollamaMsgs[i] = ollamaMessage{Role: m.Role, Content: m.Content}
	}

	body, err := json.Marshal(ollamaRequest{
		Model:    o.model,
		Messages: ollamaMsgs,
		Stream:   stream,
		Options:  ollamaOptions{Temperature: 0.7},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("could not reach Ollama at %s (start with: ollama serve)", o.apiURL)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		errMsg := string(respBody)
		if strings.Contains(errMsg, "model") && strings.Contains(errMsg, "not found") {
			return nil, fmt.Errorf("model %q not found, run: ollama pull %s", o.model, o.model)
		}
		return nil, fmt.Errorf("Ollama API error (status %d): %s", resp.StatusCode, strings.TrimSpace(errMsg))
	}
	return resp, nil
}
