// Package llm wraps the text-generation backend used for chat replies.
package llm

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by providers that have no credentials.
var ErrNotConfigured = errors.New("language model provider is not configured")

// Generation is one model answer.
type Generation struct {
	Text string
	// TotalTokens is the provider-reported usage for prompt and answer.
	// It is only meaningful when HasUsage is true.
	TotalTokens int
	HasUsage    bool
}

// Provider generates answers and counts tokens.
type Provider interface {
	Generate(ctx context.Context, prompt string) (Generation, error)
	CountTokens(ctx context.Context, text string) (int, error)
}

// Unavailable is a Provider that always fails. It stands in for the real
// backend when no API key is configured so turns still recover gracefully.
type Unavailable struct {
	Err error
}

func (u Unavailable) err() error {
	if u.Err != nil {
		return u.Err
	}
	return ErrNotConfigured
}

// Generate always fails.
func (u Unavailable) Generate(context.Context, string) (Generation, error) {
	return Generation{}, u.err()
}

// CountTokens always fails.
func (u Unavailable) CountTokens(context.Context, string) (int, error) {
	return 0, u.err()
}
