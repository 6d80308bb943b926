package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lockcode-manager/core/lease"
	"lockcode-manager/core/models"
	"lockcode-manager/core/store"
	"lockcode-manager/core/utils"
	"lockcode-manager/feature/passcode"

	"go.uber.org/zap"
)

// Selection picks the failure records to retry.
type Selection struct {
	// All selects every unresolved record. It is implied when IDs is empty.
	All bool   `json:"all"`
	IDs []uint `json:"ids"`
}

// Retry statuses reported per record.
const (
	RetryResolved = "resolved"
	RetryFailed   = "failed"
	RetrySkipped  = "skipped"
)

// RetryResult is the outcome for one record.
type RetryResult struct {
	ID      uint   `json:"id"`
	LockID  string `json:"lock_id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Summary aggregates a retry pass.
type Summary struct {
	Selected  int           `json:"selected"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Results   []RetryResult `json:"results"`
}

// RetryWorker re-attempts failed updates.
type RetryWorker struct {
	deps Deps
	now  func() time.Time
}

// NewRetryWorker creates a retry worker.
func NewRetryWorker(deps Deps) *RetryWorker {
	return &RetryWorker{deps: deps.withDefaults(), now: time.Now}
}

// RetryOutstanding retries the selected records one at a time.
func (w *RetryWorker) RetryOutstanding(ctx context.Context, sel Selection) (*Summary, error) {
	var (
		records []models.FailureRecord
		err     error
	)
	if sel.All || len(sel.IDs) == 0 {
		records, err = w.deps.Store.UnresolvedFailures(ctx)
	} else {
		records, err = w.deps.Store.FailuresByID(ctx, sel.IDs)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load failure records: %w", err)
	}

	summary := &Summary{Selected: len(records), Results: []RetryResult{}}
	var resolved []uint
	for i := range records {
		res := w.retryOne(ctx, &records[i])
		switch res.Status {
		case RetryResolved:
			summary.Succeeded++
			resolved = append(resolved, res.ID)
		case RetryFailed:
			summary.Failed++
		default:
			summary.Skipped++
		}
		summary.Results = append(summary.Results, res)
	}

	if len(resolved) > 0 {
		if err := w.deps.Failures.Prune(ctx, resolved); err != nil {
			w.deps.Logger.Warn("Failed to prune failure mirror", zap.Error(err))
		}
	}
	w.deps.Logger.Info("Retry pass finished",
		zap.Int("selected", summary.Selected),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped))
	return summary, nil
}

func (w *RetryWorker) retryOne(ctx context.Context, rec *models.FailureRecord) RetryResult {
	out := RetryResult{ID: rec.ID, LockID: rec.LockID}
	l := w.deps.Logger.With(zap.Uint("failure_id", rec.ID), zap.String("lock_id", rec.LockID))

	if rec.Resolved {
		out.Status, out.Message = RetrySkipped, "already resolved"
		return out
	}

	vendorID, ok := utils.ParseID(rec.LockID)
	if rec.LockID == models.UnknownLockID || !ok {
		// Without a resolved lock there is nothing to call; the retry count stays put.
		if rec.Retryable {
			rec.Retryable = false
			if err := w.deps.Store.SaveFailureRetry(ctx, rec); err != nil {
				l.Error("Failed to mark failure un-retryable", zap.Error(err))
			}
		}
		out.Status, out.Message = RetrySkipped, "no resolved lock"
		return out
	}

	attempted := false
	err := lease.With(ctx, w.deps.Locker, lease.LockKey(rec.LockID), func(ctx context.Context) error {
		attempted = true
		code := w.deps.Codes()
		result := w.deps.Updater.Update(ctx, passcode.Request{
			VendorLockID:  vendorID,
			ReservationID: rec.ReservationID,
			Code:          code,
			CheckIn:       rec.CheckIn,
			CheckOut:      rec.CheckOut,
		})

		w.stamp(rec)
		if result.OK {
			rec.Resolved = true
			w.onSuccess(ctx, l, rec, code, result)
		} else {
			rec.Kind = string(result.Kind)
			rec.Message = result.Message
			rec.RawError = result.Raw
		}
		if err := w.deps.Store.SaveFailureRetry(ctx, rec); err != nil {
			return fmt.Errorf("failed to save retry outcome: %w", err)
		}
		if result.OK {
			out.Status = RetryResolved
		} else {
			out.Status, out.Message = RetryFailed, result.Message
		}
		return nil
	})
	if err == nil {
		return out
	}

	l.Error("Retry failed", zap.Error(err))
	if !attempted {
		// No device call was made; the attempt still counts.
		w.stamp(rec)
		rec.Kind = string(passcode.KindUnknown)
		rec.Message = err.Error()
		rec.RawError = ""
		if saveErr := w.deps.Store.SaveFailureRetry(ctx, rec); saveErr != nil {
			l.Error("Failed to save retry outcome", zap.Error(saveErr))
		}
	}
	out.Status, out.Message = RetryFailed, err.Error()
	return out
}

func (w *RetryWorker) stamp(rec *models.FailureRecord) {
	now := w.now().UTC()
	rec.RetryCount++
	rec.LastRetryAt = &now
}

func (w *RetryWorker) onSuccess(ctx context.Context, l *zap.Logger, rec *models.FailureRecord, code string, result passcode.Result) {
	success := &models.SuccessRecord{
		RunID:         rec.RunID,
		FailureID:     &rec.ID,
		ReservationID: rec.ReservationID,
		LockID:        rec.LockID,
		Property:      rec.Property,
		GuestName:     rec.GuestName,
		CheckIn:       rec.CheckIn,
		CheckOut:      rec.CheckOut,
		Code:          code,
		LatencyMs:     result.Latency.Milliseconds(),
		UpstreamError: result.UpstreamError,
		CreatedAt:     w.now().UTC(),
	}
	if err := w.deps.Store.CreateSuccess(ctx, success); err != nil {
		l.Error("Failed to write success record", zap.Error(err))
	}

	var reservationID *uint
	if res, err := w.deps.Store.GetReservation(ctx, rec.ReservationID); err == nil {
		reservationID = &res.ID
		if err := w.deps.Store.LinkReservation(ctx, res.ID, &result.LockProfileID); err != nil {
			l.Error("Failed to link reservation", zap.Error(err))
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		l.Error("Failed to load reservation", zap.Error(err))
	}
	if err := w.deps.Store.UpdateLockCode(ctx, result.LockProfileID, code, reservationID); err != nil {
		l.Error("Failed to cache lock code", zap.Error(err))
	}
}
