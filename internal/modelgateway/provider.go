// Package modelgateway wraps the language-model providers used by the
// agent pipeline behind a single interface and tracks per-caller spend.
package modelgateway

import "context"

// Completion is the result of one model call.
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
	Cost         float64
}

// Provider is satisfied by every model backend the gateway can wrap.
type Provider interface {
	Name() string
	Complete(ctx context.Context, systemPrompt, userPrompt string) (Completion, error)
}
