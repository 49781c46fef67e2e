package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rayhanfay/sistem-rangkuman-data/config"
)

func TestNewLimitsDefaults(t *testing.T) {
	l := NewLimits(0)
	require.Equal(t, config.DefaultMaxConcurrentRequests, l.MaxConcurrentRequests)
	require.Equal(t, int64(config.DefaultMaxMessageBytes), l.MaxMessageBytes)
	require.Equal(t, config.DefaultOperationTimeout, l.OperationTimeout)
	require.Equal(t, config.DefaultAcquireRequestTimeout, l.AcquireRequestTimeout)

	require.Equal(t, 3, NewLimits(3).MaxConcurrentRequests)
}

func TestRunExecutesAndPropagatesError(t *testing.T) {
	c := NewController(NewLimits(1))

	ran := false
	require.NoError(t, c.Run(context.Background(), func(ctx context.Context) error {
		ran = true
		return nil
	}))
	require.True(t, ran)

	sentinel := errors.New("handler failed")
	require.ErrorIs(t, c.Run(context.Background(), func(ctx context.Context) error {
		return sentinel
	}), sentinel)
}

func TestRunReturnsBusyWhenSlotsFull(t *testing.T) {
	c := NewController(Limits{
		MaxConcurrentRequests: 1,
		AcquireRequestTimeout: 20 * time.Millisecond,
	})

	hold := make(chan struct{})
	inside := make(chan struct{})
	go func() {
		_ = c.Run(context.Background(), func(ctx context.Context) error {
			close(inside)
			<-hold
			return nil
		})
	}()
	<-inside

	err := c.Run(context.Background(), func(ctx context.Context) error { return nil })
	require.ErrorIs(t, err, ErrBusy)

	close(hold)
	require.Eventually(t, func() bool {
		return c.Run(context.Background(), func(ctx context.Context) error { return nil }) == nil
	}, time.Second, 5*time.Millisecond)
}

func TestRunAppliesOperationTimeout(t *testing.T) {
	c := NewController(Limits{
		MaxConcurrentRequests: 1,
		AcquireRequestTimeout: time.Second,
		OperationTimeout:      20 * time.Millisecond,
	})

	err := c.Run(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunCanceledCallerContext(t *testing.T) {
	c := NewController(Limits{
		MaxConcurrentRequests: 1,
		AcquireRequestTimeout: time.Second,
	})

	hold := make(chan struct{})
	inside := make(chan struct{})
	go func() {
		_ = c.Run(context.Background(), func(ctx context.Context) error {
			close(inside)
			<-hold
			return nil
		})
	}()
	<-inside
	defer close(hold)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Run(ctx, func(ctx context.Context) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}
