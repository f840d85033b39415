// Package ai wraps the external summarization providers behind a single
// Summarize function. Provider choice and fallback order are constructor
// arguments; nothing here reads the environment.
package ai

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnavailable reports a transport or provider failure; callers may
	// retry the whole request.
	ErrUnavailable = errors.New("ai provider unavailable")
	// ErrMalformed reports a reply that could not be parsed.
	ErrMalformed = errors.New("ai reply malformed")
)

// Reply is one successful summarization plus its usage telemetry.
type Reply struct {
	Text           string
	Provider       string
	PromptTokens   int
	ResponseTokens int
	TotalTokens    int
}

// Summarizer turns a prompt into narrative text.
type Summarizer interface {
	Name() string
	Summarize(ctx context.Context, prompt string) (*Reply, error)
}

// Chain tries providers in order: one primary attempt, then at most one
// fallback per remaining provider. The first error is surfaced when all fail.
type Chain struct {
	providers []Summarizer
}

func NewChain(providers ...Summarizer) *Chain {
	return &Chain{providers: providers}
}

func (c *Chain) Name() string { return "chain" }

func (c *Chain) Summarize(ctx context.Context, prompt string) (*Reply, error) {
	if len(c.providers) == 0 {
		return nil, fmt.Errorf("%w: no providers configured", ErrUnavailable)
	}
	var firstErr error
	for _, p := range c.providers {
		reply, err := p.Summarize(ctx, prompt)
		if err == nil {
			return reply, nil
		}
		if firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", p.Name(), err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, firstErr
}

// estimateTokens approximates usage for providers that do not report it.
// Four characters per token is the usual rule of thumb.
func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}
