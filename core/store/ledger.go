package store

import (
	"context"
	"time"

	"lockcode-manager/core/models"
)

// FailureFilter narrows ListFailures.
type FailureFilter struct {
	// Resolved filters on the resolved flag when set.
	Resolved *bool
	// RunID restricts to failures recorded by one run when set.
	RunID *uint
	// Limit caps the number of rows (0 = no limit).
	Limit int
}

// CreateFailure appends a failure record.
func (s *Store) CreateFailure(ctx context.Context, f *models.FailureRecord) error {
	return s.db.WithContext(ctx).Create(f).Error
}

// CreateSuccess appends a success record.
func (s *Store) CreateSuccess(ctx context.Context, r *models.SuccessRecord) error {
	return s.db.WithContext(ctx).Create(r).Error
}

// HasSuccessSince reports whether a success was recorded for the lock at or after since.
func (s *Store) HasSuccessSince(ctx context.Context, lockID string, since time.Time) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.SuccessRecord{}).
		Where("lock_id = ? AND created_at >= ?", lockID, since).
		Count(&count).Error
	return count > 0, err
}

// ListSuccesses returns success records for a run.
func (s *Store) ListSuccesses(ctx context.Context, runID uint) ([]models.SuccessRecord, error) {
	var rows []models.SuccessRecord
	err := s.db.WithContext(ctx).Where("run_id = ?", runID).Order("id").Find(&rows).Error
	return rows, err
}

// ListFailures returns failure records, oldest first.
func (s *Store) ListFailures(ctx context.Context, filter FailureFilter) ([]models.FailureRecord, error) {
	q := s.db.WithContext(ctx).Model(&models.FailureRecord{})
	if filter.Resolved != nil {
		q = q.Where("resolved = ?", *filter.Resolved)
	}
	if filter.RunID != nil {
		q = q.Where("run_id = ?", *filter.RunID)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var rows []models.FailureRecord
	err := q.Order("id").Find(&rows).Error
	return rows, err
}

// UnresolvedFailures returns every failure record not yet resolved.
func (s *Store) UnresolvedFailures(ctx context.Context) ([]models.FailureRecord, error) {
	resolved := false
	return s.ListFailures(ctx, FailureFilter{Resolved: &resolved})
}

// FailuresByID returns the failure records with the given ids; unknown ids are ignored.
func (s *Store) FailuresByID(ctx context.Context, ids []uint) ([]models.FailureRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.FailureRecord
	err := s.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&rows).Error
	return rows, err
}

// SaveFailureRetry persists the retry bookkeeping of a failure record.
func (s *Store) SaveFailureRetry(ctx context.Context, f *models.FailureRecord) error {
	res := s.db.WithContext(ctx).
		Model(&models.FailureRecord{}).
		Where("id = ?", f.ID).
		Updates(map[string]any{
			"retry_count":   f.RetryCount,
			"last_retry_at": f.LastRetryAt,
			"resolved":      f.Resolved,
			"retryable":     f.Retryable,
			"kind":          f.Kind,
			"message":       f.Message,
			"raw_error":     f.RawError,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
