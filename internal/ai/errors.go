package ai

import "fmt"

// TransportError is a failure to obtain or read a chat response: the
// endpoint was unreachable, answered with a non-200 status, or the
// connection broke mid-stream.
type TransportError struct {
	URL        string
	StatusCode int // Non-zero when the endpoint answered with a bad status.
	Cause      error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("chat endpoint returned status %d", e.StatusCode)
	}
	if e.Cause != nil {
		return fmt.Sprintf("could not reach chat endpoint at %s: %v", e.URL, e.Cause)
	}
	return fmt.Sprintf("could not reach chat endpoint at %s", e.URL)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}
