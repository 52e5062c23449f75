// Package llm defines the provider-agnostic contract between the
// conversation service, the streaming relay, and the model integrations.
package llm

import (
	"context"

	"chatbot-backend/internal/domain"
)

// Fragment is one unit of model output as it arrives.
type Fragment struct {
	Text string
	// Usage is attached to at most one fragment, typically the last.
	Usage *Usage
}

// Usage reports token accounting for a completed generation.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

// TokenStream is a lazy, finite, non-restartable sequence of fragments.
// Recv blocks until the next fragment arrives and returns io.EOF after the
// final one. Close releases the upstream connection; it must be safe to
// call after an error and from a caller reacting to context cancellation.
type TokenStream interface {
	Recv() (Fragment, error)
	Close() error
}

// Provider generates model responses.
type Provider interface {
	// StreamChat opens a streaming generation for the given transcript.
	// Cancelling ctx aborts the upstream request.
	StreamChat(ctx context.Context, messages []domain.ChatMessage) (TokenStream, error)
	// Complete returns a full single-shot response, used for short
	// auxiliary generations such as chat titles.
	Complete(ctx context.Context, system, user string) (string, error)
}
