package external

import "context"

// EmailMessage is one plain-text message addressed to a single recipient.
type EmailMessage struct {
	To          string
	FromAddress string
	FromName    string
	Subject     string
	Body        string
	// ReferenceID correlates provider events with a pending send.
	ReferenceID string
}

// EmailProvider delivers a message and returns the provider's message id.
// A blocked recipient is reported as types.ErrCodeEmailBlocked.
type EmailProvider interface {
	Send(ctx context.Context, msg EmailMessage) (string, error)
}

// CompletionRequest is a single-turn chat completion.
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
}

// LLMClient produces text for a completion request.
type LLMClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
