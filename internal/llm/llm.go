// Package llm adapts a langchaingo model to the completion contract the
// analysis layer consumes: prompt in, text out, with a distinguished
// capacity-exhausted failure the caller may retry against another backend.
package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// ErrCapacityExhausted marks a provider quota/rate failure. Rotation and
// retry policy live with the caller's credentials, not here.
var ErrCapacityExhausted = errors.New("llm: model capacity exhausted")

// Completer generates a text completion for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Client wraps a configured langchaingo model.
type Client struct {
	model llms.Model
}

// NewClient builds a Client over any langchaingo model.
func NewClient(model llms.Model) *Client {
	return &Client{model: model}
}

// Complete runs a single-prompt generation.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt)
	if err != nil {
		if isCapacityExhausted(err) {
			return "", ErrCapacityExhausted
		}
		return "", err
	}
	return out, nil
}

// isCapacityExhausted recognizes quota failures across providers, which
// surface as 429s or resource-exhausted statuses.
func isCapacityExhausted(err error) bool {
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "429") ||
		strings.Contains(low, "resource exhausted") ||
		strings.Contains(low, "resource_exhausted") ||
		strings.Contains(low, "quota") ||
		strings.Contains(low, "rate limit")
}
