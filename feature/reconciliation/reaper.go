package reconciliation

import (
	"context"
	"fmt"
	"time"

	"lockcode-manager/core/models"
	"lockcode-manager/core/store"

	"go.uber.org/zap"
)

// Reaper kills runs left in the running state past the stuck timeout.
type Reaper struct {
	store   *store.Store
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewReaper creates a reaper.
func NewReaper(st *store.Store, timeout time.Duration, logger *zap.Logger) *Reaper {
	return &Reaper{store: st, timeout: timeout, logger: logger, now: time.Now}
}

// Reap transitions every stuck run to killed and returns how many it killed.
// Runs that finish concurrently are left alone.
func (r *Reaper) Reap(ctx context.Context) (int, error) {
	now := r.now().UTC()
	stuck, err := r.store.ListStuckRuns(ctx, now.Add(-r.timeout))
	if err != nil {
		return 0, fmt.Errorf("failed to list stuck runs: %w", err)
	}

	killed := 0
	for _, run := range stuck {
		ok, err := r.store.FinishRun(ctx, run.ID, store.RunOutcome{
			Status:   models.RunStatusKilled,
			EndedAt:  now,
			Counters: run.Counters(),
			Error:    fmt.Sprintf("run still running after %s; killed by stuck-run reaper", r.timeout),
		})
		if err != nil {
			return killed, fmt.Errorf("failed to kill run %d: %w", run.ID, err)
		}
		if ok {
			killed++
			r.logger.Warn("Killed stuck run",
				zap.Uint("run_id", run.ID),
				zap.Time("started_at", run.StartedAt),
				zap.Duration("age", now.Sub(run.StartedAt)))
		}
	}
	return killed, nil
}
