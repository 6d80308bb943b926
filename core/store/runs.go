package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lockcode-manager/core/models"

	"gorm.io/gorm"
)

// RunOutcome describes a terminal transition.
type RunOutcome struct {
	Status       models.RunStatus
	EndedAt      time.Time
	Counters     models.Counters
	Error        string
	ErrorContext string
}

// ClaimRun atomically creates a running run and takes the single run lock.
// It returns ErrRunInProgress when another live run holds the lock.
func (s *Store) ClaimRun(ctx context.Context, startedAt time.Time) (*models.Run, error) {
	var run *models.Run
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureRunLock(tx); err != nil {
			return err
		}

		run = &models.Run{Status: models.RunStatusRunning, StartedAt: startedAt}
		if err := tx.Create(run).Error; err != nil {
			return err
		}

		claimed, err := casRunLock(tx, nil, run.ID, startedAt)
		if err != nil || claimed {
			return err
		}

		// The lock is held. Take it over only if its holder is no longer running.
		var lock models.RunLock
		if err := tx.Where("id = ?", models.RunLockID).Take(&lock).Error; err != nil {
			return err
		}
		if lock.RunID != nil {
			var holder models.Run
			err := tx.Where("id = ?", *lock.RunID).Take(&holder).Error
			if err == nil && holder.Status == models.RunStatusRunning {
				return ErrRunInProgress
			}
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}
		claimed, err = casRunLock(tx, lock.RunID, run.ID, startedAt)
		if err != nil {
			return err
		}
		if !claimed {
			return ErrRunInProgress
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

// casRunLock swaps the run lock holder from expected to runID.
func casRunLock(tx *gorm.DB, expected *uint, runID uint, at time.Time) (bool, error) {
	q := tx.Model(&models.RunLock{}).Where("id = ?", models.RunLockID)
	if expected == nil {
		q = q.Where("run_id IS NULL")
	} else {
		q = q.Where("run_id = ?", *expected)
	}
	res := q.Updates(map[string]any{"run_id": runID, "claimed_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func releaseRunLock(tx *gorm.DB, runID uint) error {
	return tx.Model(&models.RunLock{}).
		Where("id = ? AND run_id = ?", models.RunLockID, runID).
		Updates(map[string]any{"run_id": nil, "claimed_at": nil}).Error
}

// SaveRunProgress persists counters while the run is still running.
// It reports false when the run has already reached a terminal state.
func (s *Store) SaveRunProgress(ctx context.Context, runID uint, c models.Counters) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Run{}).
		Where("id = ? AND status = ?", runID, models.RunStatusRunning).
		Updates(map[string]any{
			"processed": c.Processed,
			"succeeded": c.Succeeded,
			"failed":    c.Failed,
			"skipped":   c.Skipped,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// FinishRun moves a running run to a terminal status and releases the run lock.
// The transition happens at most once: it reports false if the run was not running.
func (s *Store) FinishRun(ctx context.Context, runID uint, out RunOutcome) (bool, error) {
	if !out.Status.IsTerminal() {
		return false, fmt.Errorf("run %d cannot finish as %q", runID, out.Status)
	}
	finished := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var run models.Run
		if err := tx.Where("id = ?", runID).Take(&run).Error; err != nil {
			return notFound(err)
		}
		if run.Status.IsTerminal() {
			return nil
		}

		duration := out.EndedAt.Sub(run.StartedAt).Milliseconds()
		res := tx.Model(&models.Run{}).
			Where("id = ? AND status = ?", runID, models.RunStatusRunning).
			Updates(map[string]any{
				"status":        out.Status,
				"ended_at":      out.EndedAt,
				"duration_ms":   duration,
				"processed":     out.Counters.Processed,
				"succeeded":     out.Counters.Succeeded,
				"failed":        out.Counters.Failed,
				"skipped":       out.Counters.Skipped,
				"error":         out.Error,
				"error_context": out.ErrorContext,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		finished = true
		return releaseRunLock(tx, runID)
	})
	return finished, err
}

// KillRun terminates a running run by id, keeping the counters it already saved.
func (s *Store) KillRun(ctx context.Context, runID uint, at time.Time, reason string) error {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status.IsTerminal() {
		return ErrRunNotRunning
	}
	ok, err := s.FinishRun(ctx, runID, RunOutcome{
		Status:   models.RunStatusKilled,
		EndedAt:  at,
		Counters: run.Counters(),
		Error:    reason,
	})
	if err != nil {
		return err
	}
	if !ok {
		return ErrRunNotRunning
	}
	return nil
}

// ListStuckRuns returns running runs that started before the cutoff.
func (s *Store) ListStuckRuns(ctx context.Context, startedBefore time.Time) ([]models.Run, error) {
	var runs []models.Run
	err := s.db.WithContext(ctx).
		Where("status = ? AND started_at < ?", models.RunStatusRunning, startedBefore).
		Order("id").
		Find(&runs).Error
	return runs, err
}

// GetRun loads a run by id.
func (s *Store) GetRun(ctx context.Context, runID uint) (*models.Run, error) {
	var run models.Run
	if err := s.db.WithContext(ctx).Where("id = ?", runID).Take(&run).Error; err != nil {
		return nil, notFound(err)
	}
	return &run, nil
}

// LatestRun loads the most recently started run.
func (s *Store) LatestRun(ctx context.Context) (*models.Run, error) {
	var run models.Run
	if err := s.db.WithContext(ctx).Order("started_at DESC, id DESC").Take(&run).Error; err != nil {
		return nil, notFound(err)
	}
	return &run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]models.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []models.Run
	err := s.db.WithContext(ctx).Order("started_at DESC, id DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

// RunningRun returns the run currently in the running state, if any.
func (s *Store) RunningRun(ctx context.Context) (*models.Run, error) {
	var run models.Run
	err := s.db.WithContext(ctx).
		Where("status = ?", models.RunStatusRunning).
		Order("id DESC").
		Take(&run).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &run, nil
}
