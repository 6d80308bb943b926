package reconciliation

import (
	"context"
	"errors"
	"testing"
	"time"

	"lockcode-manager/core/models"
	"lockcode-manager/core/reservations"
	"lockcode-manager/core/store"
	"lockcode-manager/feature/passcode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRun_UpdatesMatchedReservation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.pages([]reservations.Reservation{reservation("R-1", "1117 Front Door")})

	run, err := e.runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, models.Counters{Processed: 1, Succeeded: 1}, run.Counters())
	require.NotNil(t, run.DurationMs)

	require.Equal(t, 1, e.updater.count())
	req := e.updater.calls[0]
	assert.Equal(t, int64(11), req.VendorLockID)
	assert.Equal(t, "R-1", req.ReservationID)
	assert.Equal(t, "4821", req.Code)

	successes, err := e.store.ListSuccesses(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, successes, 1)
	assert.Equal(t, "11", successes[0].LockID)
	assert.Equal(t, "4821", successes[0].Code)

	lock, err := e.store.FindLockByKey(ctx, "1117", "Front Door")
	require.NoError(t, err)
	assert.Equal(t, "4821", lock.CurrentCode)

	res, err := e.store.GetReservation(ctx, "R-1")
	require.NoError(t, err)
	require.NotNil(t, res.LockProfileID)
	assert.Equal(t, lock.ID, *res.LockProfileID)
	require.NotNil(t, lock.ReservationID)
	assert.Equal(t, res.ID, *lock.ReservationID)
}

func TestRun_IdempotentWithinDay(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.pages(
		[]reservations.Reservation{reservation("R-1", "1117 Front Door")},
		[]reservations.Reservation{reservation("R-2", "1117 Front Door")},
	)

	run, err := e.runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Counters{Processed: 2, Succeeded: 1, Skipped: 1}, run.Counters())

	// A second run the same day finds the lock already done.
	e.pages([]reservations.Reservation{reservation("R-1", "1117 Front Door")})
	second, err := e.runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Counters{Processed: 1, Skipped: 1}, second.Counters())

	assert.Equal(t, 1, e.updater.count())
	first, err := e.store.ListSuccesses(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, first, 1)
	again, err := e.store.ListSuccesses(ctx, second.ID)
	require.NoError(t, err)
	assert.Empty(t, again)

	r2, err := e.store.GetReservation(ctx, "R-2")
	require.NoError(t, err)
	require.NotNil(t, r2.LockProfileID, "skipped reservation is still linked")
	assert.Equal(t, e.locks["1117 Front Door"].ID, *r2.LockProfileID)
}

func TestRun_FailureIsolation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.updater.fn = func(req passcode.Request) passcode.Result {
		if req.ReservationID == "R-2" {
			panic("unexpected payload")
		}
		return passcode.Result{OK: true, Code: req.Code}
	}
	e.pages([]reservations.Reservation{
		reservation("R-1", "1117 Front Door"),
		reservation("R-2", "1117 Back Door"),
		reservation("R-3", "42 Gate"),
	})

	run, err := e.runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, models.Counters{Processed: 3, Succeeded: 2, Failed: 1}, run.Counters())
	assert.Equal(t, 3, e.updater.count())

	failures, err := e.store.ListFailures(ctx, store.FailureFilter{RunID: &run.ID})
	require.NoError(t, err)
	require.Len(t, failures, 1)
	f := failures[0]
	assert.Equal(t, "R-2", f.ReservationID)
	assert.Equal(t, "12", f.LockID)
	assert.Equal(t, string(passcode.KindUnknown), f.Kind)
	assert.Equal(t, "unexpected payload", f.Message)
	assert.Contains(t, f.RawError, "goroutine")
	assert.True(t, f.Retryable)

	mirrored, err := e.failures.List(ctx)
	require.NoError(t, err)
	require.Len(t, mirrored, 1)
	assert.Equal(t, f.ID, mirrored[0].ID)
}

func TestRun_DeviceFailureRecorded(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.updater.fn = func(req passcode.Request) passcode.Result {
		return passcode.Result{Kind: passcode.KindDeviceAPI, Message: "gateway offline", Raw: `{"errcode":-3008}`}
	}
	e.pages([]reservations.Reservation{reservation("R-1", "1117 Front Door")})

	run, err := e.runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Counters{Processed: 1, Failed: 1}, run.Counters())

	failures, err := e.store.UnresolvedFailures(ctx)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "device_api", failures[0].Kind)
	assert.Equal(t, `{"errcode":-3008}`, failures[0].RawError)
	assert.True(t, failures[0].CheckIn.Equal(today))
	assert.True(t, failures[0].CheckOut.Equal(leaves))

	lock, err := e.store.FindLockByKey(ctx, "1117", "Front Door")
	require.NoError(t, err)
	assert.Empty(t, lock.CurrentCode)
}

func TestRun_UnmatchedReservationsAreSkipped(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.pages([]reservations.Reservation{
		reservation("R-1", "Beach House"),
		reservation("R-2", "99 Nowhere"),
		reservation("R-3", "9 Shed"),
	})

	run, err := e.runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, models.Counters{Processed: 3, Skipped: 3}, run.Counters())
	assert.Zero(t, e.updater.count())

	failures, err := e.store.ListFailures(ctx, store.FailureFilter{})
	require.NoError(t, err)
	assert.Empty(t, failures)

	for _, id := range []string{"R-1", "R-2", "R-3"} {
		r, err := e.store.GetReservation(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, r.LockProfileID, id)
	}
}

func TestRun_FetchErrorFailsRun(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.source.On("FetchPage", mock.Anything, 1, today).Return(&reservations.Page{
		Reservations: []reservations.Reservation{reservation("R-1", "1117 Front Door")},
		Pagination:   reservations.Pagination{Page: 1, HasMore: true},
	}, nil).Once()
	e.source.On("FetchPage", mock.Anything, 2, today).
		Return(nil, &reservations.TransportError{Op: "fetch page", Err: errors.New("timeout")}).Once()

	run, err := e.runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "page 2")
	assert.Equal(t, "fetching reservations", run.ErrorContext)
	assert.Zero(t, e.updater.count())

	// The run slot was released.
	e.pages(nil)
	next, err := e.runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, next.Status)
}

func TestRun_StopsAtMaxPages(t *testing.T) {
	e := newEnv(t)
	for page := 1; page <= 5; page++ {
		e.source.On("FetchPage", mock.Anything, page, today).Return(&reservations.Page{
			Pagination: reservations.Pagination{Page: page, HasMore: true},
		}, nil).Once()
	}

	run, err := e.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	e.source.AssertNumberOfCalls(t, "FetchPage", 5)
}

func TestRun_RefusesSecondRun(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	_, err := e.store.ClaimRun(ctx, now.Add(-time.Minute))
	require.NoError(t, err)

	_, err = e.runner.Run(ctx)
	assert.ErrorIs(t, err, store.ErrRunInProgress)
	e.source.AssertNotCalled(t, "FetchPage", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_ReapsStuckRunFirst(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	stuck, err := e.store.ClaimRun(ctx, now.Add(-2*time.Hour))
	require.NoError(t, err)
	e.pages(nil)

	run, err := e.runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)

	old, err := e.store.GetRun(ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusKilled, old.Status)
}

func TestRun_StopsWhenKilled(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.updater.fn = func(req passcode.Request) passcode.Result {
		current, err := e.store.RunningRun(ctx)
		require.NoError(t, err)
		require.NoError(t, e.store.KillRun(ctx, current.ID, now, "killed by operator"))
		return passcode.Result{OK: true, Code: req.Code}
	}
	e.pages([]reservations.Reservation{
		reservation("R-1", "1117 Front Door"),
		reservation("R-2", "1117 Back Door"),
	})

	run, err := e.runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusKilled, run.Status)
	assert.Equal(t, "killed by operator", run.Error)
	assert.Equal(t, 1, e.updater.count())
}

func TestRunner_Start(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := newEnv(t)
	e.pages([]reservations.Reservation{reservation("R-1", "1117 Front Door")})

	run, err := e.runner.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, run.Status)
	// Cancelling the caller does not stop the background run.
	cancel()

	e.runner.Wait()
	done, err := e.store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, done.Status)
	assert.Equal(t, 1, done.Succeeded)
}

func TestStartOfDay(t *testing.T) {
	loc := time.FixedZone("UTC-7", -7*3600)
	got := startOfDay(time.Date(2026, 10, 15, 20, 0, 0, 0, loc))
	assert.Equal(t, time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC), got)
}

func TestRun_UnrecordedSuccessIsFlaggedOnRun(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.updater.fn = func(req passcode.Request) passcode.Result {
		// The device accepts the code but the success row can no longer be written.
		if req.ReservationID == "R-1" {
			require.NoError(t, e.db.Exec("DROP TABLE success_records").Error)
		}
		return passcode.Result{OK: true, Code: req.Code}
	}
	e.pages([]reservations.Reservation{reservation("R-1", "1117 Front Door")})

	run, err := e.runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, models.Counters{Processed: 1, Succeeded: 1}, run.Counters())
	assert.Empty(t, run.Error)
	assert.Equal(t, "success ledger write failed for 1 reservation(s): R-1", run.ErrorContext)

	// The code on the device is still cached on the profile.
	lock, err := e.store.FindLockByKey(ctx, "1117", "Front Door")
	require.NoError(t, err)
	assert.Equal(t, "4821", lock.CurrentCode)
}
