// Package runtime bounds concurrency and execution time for dispatched
// requests.
package runtime

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/rayhanfay/sistem-rangkuman-data/config"
)

// ErrBusy is returned when the concurrent request limit is reached and no
// slot frees up within the acquire timeout.
var ErrBusy = errors.New("concurrent request limit reached, retry shortly")

// Limits captures the concurrency and payload guardrails configured for
// the server.
type Limits struct {
	MaxConcurrentRequests int
	MaxMessageBytes       int64

	OperationTimeout      time.Duration
	AcquireRequestTimeout time.Duration
}

// NewLimits initializes Limits with sensible fallbacks when values are unset.
func NewLimits(maxConcurrentRequests int) Limits {
	if maxConcurrentRequests <= 0 {
		maxConcurrentRequests = config.DefaultMaxConcurrentRequests
	}
	return Limits{
		MaxConcurrentRequests: maxConcurrentRequests,
		MaxMessageBytes:       config.DefaultMaxMessageBytes,
		OperationTimeout:      config.DefaultOperationTimeout,
		AcquireRequestTimeout: config.DefaultAcquireRequestTimeout,
	}
}

// Controller coordinates the request semaphore behind the guardrails.
type Controller struct {
	limits   Limits
	requests *semaphore.Weighted
}

// NewController constructs a Controller backed by a weighted semaphore.
func NewController(limits Limits) *Controller {
	return &Controller{
		limits:   limits,
		requests: semaphore.NewWeighted(int64(limits.MaxConcurrentRequests)),
	}
}

// Limits exposes the configured guardrails.
func (c *Controller) Limits() Limits {
	return c.limits
}

// Run executes fn under a request slot and the operation timeout. When no
// slot frees up within the acquire timeout it returns ErrBusy without
// calling fn.
func (c *Controller) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	acquireCtx := ctx
	if c.limits.AcquireRequestTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, c.limits.AcquireRequestTimeout)
		defer cancel()
	}
	if err := c.requests.Acquire(acquireCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrBusy
	}
	defer c.requests.Release(1)

	callCtx := ctx
	if c.limits.OperationTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.limits.OperationTimeout)
		defer cancel()
	}
	return fn(callCtx)
}
