// Package llm is the boundary to the translation model provider.
package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when the provider answers without text.
var ErrEmptyResponse = errors.New("empty response from model")

// Request is a single-turn completion.
type Request struct {
	Model       string
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Response is the model output and its token usage.
type Response struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Client completes prompts.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Provider() string
}
