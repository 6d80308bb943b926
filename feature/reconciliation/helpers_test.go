package reconciliation

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"lockcode-manager/core/database"
	"lockcode-manager/core/lease"
	"lockcode-manager/core/models"
	"lockcode-manager/core/reservations"
	resmocks "lockcode-manager/core/reservations/mocks"
	"lockcode-manager/core/store"
	"lockcode-manager/feature/failurelog"
	"lockcode-manager/feature/passcode"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	now    = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	today  = time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	leaves = time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
)

type fakeUpdater struct {
	mu    sync.Mutex
	calls []passcode.Request
	fn    func(passcode.Request) passcode.Result
}

func (f *fakeUpdater) Update(_ context.Context, req passcode.Request) passcode.Result {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.fn == nil {
		return passcode.Result{OK: true, Code: req.Code}
	}
	return f.fn(req)
}

func (f *fakeUpdater) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type env struct {
	db       *gorm.DB
	store    *store.Store
	source   *resmocks.Source
	updater  *fakeUpdater
	failures *failurelog.FileLog
	deps     Deps
	reaper   *Reaper
	runner   *Runner
	retry    *RetryWorker
	locks    map[string]*models.LockProfile
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	db, err := database.Connect(database.Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)
	st := store.New(db)
	require.NoError(t, st.Migrate(ctx))

	e := &env{
		db:       db,
		store:    st,
		source:   new(resmocks.Source),
		updater:  &fakeUpdater{},
		failures: failurelog.NewFileLog(filepath.Join(t.TempDir(), "failed_updates.json")),
		locks:    map[string]*models.LockProfile{},
	}
	e.addLock(t, "1117", "Front Door", 11)
	e.addLock(t, "1117", "Back Door", 12)
	e.addLock(t, "42", "Gate", 13)
	e.addLock(t, "9", "Shed", 0)

	codes := 0
	e.deps = Deps{
		Store:    st,
		Source:   e.source,
		Updater:  e.updater,
		Locker:   lease.NewLocalLocker(lease.Options{Wait: time.Second}),
		Failures: e.failures,
		Codes: func() string {
			codes++
			return []string{"4821", "0093", "7710", "5555"}[(codes-1)%4]
		},
		Logger: zap.NewNop(),
	}

	e.reaper = NewReaper(st, time.Hour, zap.NewNop())
	e.reaper.now = func() time.Time { return now }
	e.build()
	return e
}

func (e *env) build() {
	e.runner = NewRunner(e.deps, e.reaper, 5)
	e.runner.now = func() time.Time { return now }
	e.retry = NewRetryWorker(e.deps)
	e.retry.now = func() time.Time { return now }
}

// withLocker swaps the lease backend shared by the runner and retry worker.
func (e *env) withLocker(l lease.Locker) {
	e.deps.Locker = l
	e.build()
}

// addLock seeds a lock profile; vendorID 0 leaves it unresolved.
func (e *env) addLock(t *testing.T, street, name string, vendorID int64) {
	t.Helper()
	p := &models.LockProfile{StreetNumber: street, LockName: name, Alias: street + " " + name}
	if vendorID != 0 {
		p.VendorLockID = &vendorID
	}
	require.NoError(t, e.store.UpsertLockProfile(context.Background(), p))
	e.locks[p.Alias] = p
}

func reservation(id, prop string) reservations.Reservation {
	return reservations.Reservation{ID: id, GuestName: "Guest " + id, CheckIn: today, CheckOut: leaves, Property: prop}
}

// pages queues reservation pages; every page but the last reports more.
func (e *env) pages(batches ...[]reservations.Reservation) {
	for i, b := range batches {
		e.source.On("FetchPage", mock.Anything, i+1, today).Return(&reservations.Page{
			Reservations: b,
			Pagination:   reservations.Pagination{Page: i + 1, HasMore: i < len(batches)-1},
		}, nil).Once()
	}
}

func emptyPage() *reservations.Page {
	return &reservations.Page{Pagination: reservations.Pagination{Page: 1}}
}
