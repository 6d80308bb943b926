package reconciliation

import (
	"context"
	"errors"
	"time"

	"lockcode-manager/core/store"

	"go.uber.org/zap"
)

// Scheduler drives the periodic reaper and, optionally, periodic runs.
type Scheduler struct {
	runner    *Runner
	reaper    *Reaper
	reapEvery time.Duration
	runEvery  time.Duration
	logger    *zap.Logger
}

// NewScheduler creates a scheduler. A zero runEvery disables scheduled runs.
func NewScheduler(runner *Runner, reaper *Reaper, reapEvery, runEvery time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{runner: runner, reaper: reaper, reapEvery: reapEvery, runEvery: runEvery, logger: logger}
}

// Run blocks until ctx is done. Scheduled runs are started in the background
// through the runner, so cancelling ctx never interrupts one; ticks that arrive
// while a run is live are dropped.
func (s *Scheduler) Run(ctx context.Context) {
	reap := time.NewTicker(s.reapEvery)
	defer reap.Stop()

	var runTick <-chan time.Time
	if s.runEvery > 0 {
		t := time.NewTicker(s.runEvery)
		defer t.Stop()
		runTick = t.C
	}

	s.logger.Info("Scheduler started", zap.Duration("reap_every", s.reapEvery), zap.Duration("run_every", s.runEvery))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return
		case <-reap.C:
			s.reap(ctx)
		case <-runTick:
			s.run(ctx)
		}
	}
}

func (s *Scheduler) reap(ctx context.Context) {
	n, err := s.reaper.Reap(ctx)
	if err != nil {
		s.logger.Error("Scheduled reap failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("Scheduled reap killed stuck runs", zap.Int("killed", n))
	}
}

func (s *Scheduler) run(ctx context.Context) {
	run, err := s.runner.Start(ctx)
	if errors.Is(err, store.ErrRunInProgress) {
		s.logger.Debug("Skipping scheduled run, one is already running")
		return
	}
	if err != nil {
		s.logger.Error("Scheduled run failed", zap.Error(err))
		return
	}
	s.logger.Info("Scheduled run started", zap.Uint("run_id", run.ID))
}
