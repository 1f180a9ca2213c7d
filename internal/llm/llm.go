package llm

import (
	"context"
	"errors"
	"fmt"
)

// Message represents a conversation message.
type Message struct {
	Role    string // "user", "assistant"
	Content string
}

// Client defines the interface for LLM providers.
type Client interface {
	// Complete sends the ordered conversation history to the backend and
	// returns the assistant reply, trimmed. Cold-start responses are retried
	// internally up to a bounded number of attempts; every other failure is
	// returned as-is (a *BackendError for classified backend failures, a
	// wrapped transport error otherwise).
	Complete(ctx context.Context, history []Message) (string, error)
}

// ErrModelUnavailable marks a cold-start that did not resolve within the
// retry budget. Use errors.Is to detect it.
var ErrModelUnavailable = errors.New("model unavailable")

// BackendError is a hard inference failure carrying the HTTP status (if any)
// and a human-readable reason. The orchestrator only ever inspects this
// classification, never vendor-specific error shapes.
type BackendError struct {
	Status int
	Reason string
	err    error
}

func (e *BackendError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("backend error (HTTP %d): %s", e.Status, e.Reason)
	}
	return "backend error: " + e.Reason
}

func (e *BackendError) Unwrap() error { return e.err }
