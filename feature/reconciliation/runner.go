package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"lockcode-manager/core/lease"
	"lockcode-manager/core/logger"
	"lockcode-manager/core/models"
	"lockcode-manager/core/reservations"
	"lockcode-manager/core/store"
	"lockcode-manager/core/utils"
	"lockcode-manager/feature/failurelog"
	"lockcode-manager/feature/passcode"
	"lockcode-manager/feature/property"

	"go.uber.org/zap"
)

// Updater programs a new code onto a lock.
type Updater interface {
	Update(ctx context.Context, req passcode.Request) passcode.Result
}

// Deps are the collaborators shared by the runner and the retry worker.
type Deps struct {
	Store    *store.Store
	Source   reservations.Source
	Updater  Updater
	Locker   lease.Locker
	Failures failurelog.Log
	Codes    passcode.Generator
	Logger   *zap.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Failures == nil {
		d.Failures = failurelog.Nop{}
	}
	if d.Codes == nil {
		d.Codes = passcode.RandomCode
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return d
}

type outcome int

const (
	outcomeSucceeded outcome = iota
	// The lock was programmed but its success record was not written.
	outcomeSucceededUnrecorded
	outcomeFailed
	outcomeSkipped
)

// Runner executes reconciliation runs.
type Runner struct {
	deps     Deps
	reaper   *Reaper
	maxPages int
	now      func() time.Time

	wg sync.WaitGroup
}

// NewRunner creates a runner. maxPages caps reservation pagination.
func NewRunner(deps Deps, reaper *Reaper, maxPages int) *Runner {
	if maxPages <= 0 {
		maxPages = 100
	}
	return &Runner{deps: deps.withDefaults(), reaper: reaper, maxPages: maxPages, now: time.Now}
}

// startOfDay is the beginning of the UTC calendar day containing t.
func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// claim reaps stuck runs and claims a new one.
func (r *Runner) claim(ctx context.Context) (*models.Run, error) {
	if _, err := r.reaper.Reap(ctx); err != nil {
		// A failed sweep must not block new runs; the periodic reaper retries.
		r.deps.Logger.Error("Stuck run sweep failed", zap.Error(err))
	}
	run, err := r.deps.Store.ClaimRun(ctx, r.now().UTC())
	if err != nil {
		return nil, err
	}
	logger.WithRun(r.deps.Logger, run.ID).Info("Reconciliation run started")
	return run, nil
}

// Run executes one reconciliation run to completion and returns its final state.
// It returns store.ErrRunInProgress when another run is live.
func (r *Runner) Run(ctx context.Context) (*models.Run, error) {
	run, err := r.claim(ctx)
	if err != nil {
		return nil, err
	}
	r.Execute(ctx, run)
	return r.deps.Store.GetRun(ctx, run.ID)
}

// Start claims a run and executes it in the background. The returned run is
// in the running state; Wait blocks until background runs finish.
func (r *Runner) Start(ctx context.Context) (*models.Run, error) {
	run, err := r.claim(ctx)
	if err != nil {
		return nil, err
	}
	// The run outlives the request that started it.
	bg := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.Execute(bg, run)
	}()
	return run, nil
}

// Wait blocks until every run started with Start has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Execute processes a claimed run. Reservations are handled one at a time;
// a failing reservation never aborts the run.
func (r *Runner) Execute(ctx context.Context, run *models.Run) {
	l := logger.WithRun(r.deps.Logger, run.ID)
	var counters models.Counters
	var unrecorded []string

	defer func() {
		if p := recover(); p != nil {
			l.Error("Run aborted by panic", zap.Any("panic", p))
			r.finish(ctx, l, run.ID, models.RunStatusFailed, counters, fmt.Sprintf("panic: %v", p), string(debug.Stack()))
		}
	}()

	cutoff := startOfDay(r.now())
	due, err := r.fetchAll(ctx, l, cutoff)
	if err != nil {
		l.Error("Failed to fetch reservations", zap.Error(err))
		r.finish(ctx, l, run.ID, models.RunStatusFailed, counters, err.Error(), "fetching reservations")
		return
	}
	l.Info("Fetched reservations", zap.Int("count", len(due)), zap.Time("cutoff", cutoff))

	for _, res := range due {
		switch r.processSafely(ctx, l, run.ID, res) {
		case outcomeSucceeded:
			counters.Succeeded++
		case outcomeSucceededUnrecorded:
			counters.Succeeded++
			unrecorded = append(unrecorded, res.ID)
		case outcomeFailed:
			counters.Failed++
		case outcomeSkipped:
			counters.Skipped++
		}
		counters.Processed++

		live, err := r.deps.Store.SaveRunProgress(ctx, run.ID, counters)
		if err != nil {
			l.Error("Failed to save run progress", zap.Error(err))
			continue
		}
		if !live {
			l.Warn("Run is no longer running, stopping", zap.Int("processed", counters.Processed))
			return
		}
	}

	errCtx := ""
	if len(unrecorded) > 0 {
		errCtx = fmt.Sprintf("success ledger write failed for %d reservation(s): %s",
			len(unrecorded), strings.Join(unrecorded, ", "))
	}
	r.finish(ctx, l, run.ID, models.RunStatusCompleted, counters, "", errCtx)
}

func (r *Runner) finish(ctx context.Context, l *zap.Logger, runID uint, status models.RunStatus, c models.Counters, msg, errCtx string) {
	ok, err := r.deps.Store.FinishRun(ctx, runID, store.RunOutcome{
		Status:       status,
		EndedAt:      r.now().UTC(),
		Counters:     c,
		Error:        msg,
		ErrorContext: errCtx,
	})
	if err != nil {
		l.Error("Failed to finish run", zap.Error(err))
		return
	}
	if !ok {
		l.Warn("Run was already terminal", zap.String("wanted", string(status)))
		return
	}
	l.Info("Reconciliation run finished",
		zap.String("status", string(status)),
		zap.Int("processed", c.Processed),
		zap.Int("succeeded", c.Succeeded),
		zap.Int("failed", c.Failed),
		zap.Int("skipped", c.Skipped))
}

// fetchAll pages the reservation source until it reports no more pages.
func (r *Runner) fetchAll(ctx context.Context, l *zap.Logger, cutoff time.Time) ([]reservations.Reservation, error) {
	var all []reservations.Reservation
	for page := 1; ; page++ {
		if page > r.maxPages {
			l.Warn("Reservation source still reports more pages, stopping", zap.Int("max_pages", r.maxPages))
			return all, nil
		}
		p, err := r.deps.Source.FetchPage(ctx, page, cutoff)
		if err != nil {
			return all, fmt.Errorf("failed to fetch reservation page %d: %w", page, err)
		}
		all = append(all, p.Reservations...)
		if !p.Pagination.HasMore {
			return all, nil
		}
	}
}

// processSafely converts a panic in one reservation into an unknown failure.
func (r *Runner) processSafely(ctx context.Context, l *zap.Logger, runID uint, res reservations.Reservation) (out outcome) {
	lockID := models.UnknownLockID
	l = l.With(zap.String("external_id", res.ID))

	defer func() {
		if p := recover(); p != nil {
			l.Error("Panic while processing reservation", zap.Any("panic", p), zap.String("lock_id", lockID))
			r.recordFailure(ctx, l, &runID, res, lockID, passcode.Result{
				Kind:    passcode.KindUnknown,
				Message: fmt.Sprint(p),
				Raw:     string(debug.Stack()),
			})
			out = outcomeFailed
		}
	}()
	return r.process(ctx, l, runID, res, &lockID)
}

func (r *Runner) process(ctx context.Context, l *zap.Logger, runID uint, res reservations.Reservation, lockID *string) outcome {
	st := r.deps.Store
	rec := &models.Reservation{
		ExternalID: res.ID,
		GuestName:  res.GuestName,
		CheckIn:    res.CheckIn.UTC(),
		CheckOut:   res.CheckOut.UTC(),
		Property:   res.Property,
	}
	if err := st.UpsertReservation(ctx, rec); err != nil {
		r.recordFailure(ctx, l, &runID, res, *lockID, passcode.Result{
			Kind: passcode.KindPersistence, Message: fmt.Sprintf("failed to save reservation: %v", err),
		})
		return outcomeFailed
	}

	key, ok := property.Match(res.Property)
	if !ok {
		l.Warn("Reservation property does not match a lock", zap.String("property", res.Property))
		r.unlink(ctx, l, rec.ID)
		return outcomeSkipped
	}

	profile, err := st.FindLockByKey(ctx, key.StreetNumber, key.LockName)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		r.recordFailure(ctx, l, &runID, res, *lockID, passcode.Result{
			Kind: passcode.KindPersistence, Message: fmt.Sprintf("failed to load lock %s: %v", key, err),
		})
		return outcomeFailed
	}
	if profile == nil || !profile.Resolved() {
		l.Warn("Lock is unknown or has no vendor id", zap.String("lock_key", key.String()))
		r.unlink(ctx, l, rec.ID)
		return outcomeSkipped
	}

	vendorID := *profile.VendorLockID
	*lockID = utils.ToString(vendorID)
	l = l.With(zap.String("lock_id", *lockID))

	var out outcome
	err = lease.With(ctx, r.deps.Locker, lease.LockKey(*lockID), func(ctx context.Context) error {
		done, err := st.HasSuccessSince(ctx, *lockID, startOfDay(r.now()))
		if err != nil {
			return err
		}
		if done {
			l.Info("Lock already updated today, linking only")
			if err := st.LinkReservation(ctx, rec.ID, &profile.ID); err != nil {
				return err
			}
			out = outcomeSkipped
			return nil
		}

		code := r.deps.Codes()
		result := r.deps.Updater.Update(ctx, passcode.Request{
			VendorLockID:  vendorID,
			ReservationID: res.ID,
			Code:          code,
			CheckIn:       res.CheckIn,
			CheckOut:      res.CheckOut,
		})
		if !result.OK {
			r.recordFailure(ctx, l, &runID, res, *lockID, result)
			out = outcomeFailed
			return nil
		}

		out = outcomeSucceeded
		if err := r.recordSuccess(ctx, &models.SuccessRecord{
			RunID:         &runID,
			ReservationID: res.ID,
			LockID:        *lockID,
			Property:      res.Property,
			GuestName:     res.GuestName,
			CheckIn:       res.CheckIn.UTC(),
			CheckOut:      res.CheckOut.UTC(),
			Code:          code,
			LatencyMs:     result.Latency.Milliseconds(),
			UpstreamError: result.UpstreamError,
		}); err != nil {
			// Without the record the lock is not deduplicated today and a
			// later run will issue it a new code.
			l.Error("Lock programmed but success record not written; same-day dedupe will miss this lock",
				zap.Int64("vendor_lock_id", vendorID), zap.Error(err))
			out = outcomeSucceededUnrecorded
		}
		if err := st.UpdateLockCode(ctx, profile.ID, code, &rec.ID); err != nil {
			l.Error("Failed to cache lock code", zap.Error(err))
		}
		if err := st.LinkReservation(ctx, rec.ID, &profile.ID); err != nil {
			l.Error("Failed to link reservation", zap.Error(err))
		}
		return nil
	})
	if err != nil {
		kind := passcode.KindPersistence
		if errors.Is(err, lease.ErrNotObtained) {
			kind = passcode.KindUnknown
		}
		r.recordFailure(ctx, l, &runID, res, *lockID, passcode.Result{Kind: kind, Message: err.Error()})
		return outcomeFailed
	}
	return out
}

func (r *Runner) unlink(ctx context.Context, l *zap.Logger, reservationID uint) {
	if err := r.deps.Store.LinkReservation(ctx, reservationID, nil); err != nil {
		l.Error("Failed to clear reservation lock link", zap.Error(err))
	}
}

func (r *Runner) recordSuccess(ctx context.Context, rec *models.SuccessRecord) error {
	rec.CreatedAt = r.now().UTC()
	if err := r.deps.Store.CreateSuccess(ctx, rec); err != nil {
		return fmt.Errorf("failed to write success record: %w", err)
	}
	return nil
}

func (r *Runner) recordFailure(ctx context.Context, l *zap.Logger, runID *uint, res reservations.Reservation, lockID string, result passcode.Result) {
	now := r.now().UTC()
	rec := &models.FailureRecord{
		RunID:         runID,
		ReservationID: res.ID,
		LockID:        lockID,
		Property:      res.Property,
		GuestName:     res.GuestName,
		CheckIn:       res.CheckIn.UTC(),
		CheckOut:      res.CheckOut.UTC(),
		Kind:          string(result.Kind),
		Message:       result.Message,
		RawError:      result.Raw,
		Retryable:     lockID != models.UnknownLockID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := r.deps.Store.CreateFailure(ctx, rec); err != nil {
		l.Error("Failed to write failure record", zap.Error(err))
		return
	}
	if err := r.deps.Failures.Append(ctx, failurelog.FromRecord(*rec)); err != nil {
		l.Warn("Failed to mirror failure record", zap.Error(err))
	}
}
