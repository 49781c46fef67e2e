package analysis

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/rayhanfay/sistem-rangkuman-data/config"
)

// ErrAnalysisRunning is returned when a trigger arrives while a pass is
// already in flight.
var ErrAnalysisRunning = errors.New("analisis lain sedang berjalan, coba lagi nanti")

// Supervisor serializes analysis passes: at most one runs at a time, and
// triggers that arrive during a pass are rejected rather than queued.
type Supervisor struct {
	runner *Runner
	slot   *semaphore.Weighted
}

func NewSupervisor(runner *Runner) *Supervisor {
	return &Supervisor{runner: runner, slot: semaphore.NewWeighted(1)}
}

// Trigger starts a pass in the background. The pass outlives the caller's
// context; it runs under its own deadline and reports phases through
// notify. Exactly one terminal report (completed or error) is delivered
// per accepted trigger.
func (s *Supervisor) Trigger(opts Options, notify Reporter) error {
	if !s.slot.TryAcquire(1) {
		return ErrAnalysisRunning
	}
	go func() {
		defer s.slot.Release(1)
		ctx, cancel := context.WithTimeout(context.Background(), config.DefaultAnalysisTimeout)
		defer cancel()
		if err := s.runner.Run(ctx, opts, notify); err != nil {
			log.Error().Err(err).Msg("background analysis finished with error")
		}
	}()
	return nil
}
