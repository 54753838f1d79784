package ai

// chatRequest is the body POSTed to the chat endpoint.
type chatRequest struct {
	Message string `json:"message"`
}

// ollamaRequest is the request body sent to the Ollama API.
type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options"`
}

// ollamaMessage is a single message in the Ollama chat format.
type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ollamaOptions controls generation parameters.
type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

// ollamaResponse is one response object from the Ollama API. Streaming
// responses send one per line, the last with Done set.
type ollamaResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}
