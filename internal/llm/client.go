// Package llm provides the chat completion client used by the routing,
// code generation, and response synthesis steps.
package llm

import (
	"context"
	"errors"
)

var (
	// ErrGeneration indicates the completion call failed.
	ErrGeneration = errors.New("llm generation failed")

	// ErrEmptyResponse indicates the model returned no content.
	ErrEmptyResponse = errors.New("llm returned empty response")

	// ErrInvalidConfig indicates invalid client configuration.
	ErrInvalidConfig = errors.New("invalid llm configuration")
)

// Request is a single chat completion request. System is optional.
type Request struct {
	System string
	User   string

	// MaxTokens overrides the client default when positive.
	MaxTokens int

	// Temperature overrides the client default when non-nil.
	Temperature *float64
}

// Response is a completed chat completion.
type Response struct {
	Content string

	// TokensUsed is the total token count reported by the provider,
	// zero if the provider does not report usage.
	TokensUsed int
}

// Client generates chat completions.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}
