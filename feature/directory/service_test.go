package directory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"lockcode-manager/core/database"
	"lockcode-manager/core/devices"
	"lockcode-manager/core/devices/mocks"
	"lockcode-manager/core/models"
	"lockcode-manager/core/store"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setup(t *testing.T) (*Service, *mocks.Directory, *store.Store) {
	t.Helper()
	db, err := database.Connect(database.Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)
	st := store.New(db)
	require.NoError(t, st.Migrate(context.Background()))

	dir := new(mocks.Directory)
	return NewService(dir, st, zap.NewNop()), dir, st
}

func TestSync(t *testing.T) {
	ctx := context.Background()
	svc, dir, st := setup(t)
	start := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	dir.On("ListLocks", mock.Anything, 1).Return(&devices.LockPage{
		Locks: []devices.Lock{{ID: 11, Alias: "1117 Front Door"}, {ID: 12, Alias: "Lobby"}},
		Page:  1, Pages: 2,
	}, nil).Once()
	dir.On("ListLocks", mock.Anything, 2).Return(&devices.LockPage{
		Locks: []devices.Lock{{ID: 13, Alias: "42 Gate"}},
		Page:  2, Pages: 2,
	}, nil).Once()
	dir.On("ListPasscodeSlots", mock.Anything, int64(11), 1).Return(&devices.SlotPage{
		Slots: []devices.Slot{
			{ID: 501, Name: "Guest Code", Code: "1234", Active: true, StartsAt: &start},
			{ID: 502, Name: "Cleaner", Code: "9999", Active: true},
		},
		Page: 1, Pages: 1,
	}, nil).Once()
	dir.On("ListPasscodeSlots", mock.Anything, int64(13), 1).
		Return(nil, &devices.TransportError{Op: "list passcodes", Err: errors.New("timeout")}).Once()

	report, err := svc.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Locks)
	assert.Equal(t, 2, report.Matched)
	assert.Equal(t, 1, report.Unmatched)
	assert.Equal(t, []string{"Lobby"}, report.UnmatchedAliases)
	assert.Equal(t, 2, report.Slots)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "42 Gate")

	front, err := st.FindLockByKey(ctx, "1117", "Front Door")
	require.NoError(t, err)
	require.NotNil(t, front.VendorLockID)
	assert.Equal(t, int64(11), *front.VendorLockID)

	slots, err := st.ListSlots(ctx, front.ID)
	require.NoError(t, err)
	assert.Len(t, slots, 2)

	gate, err := st.FindLockByVendorID(ctx, 13)
	require.NoError(t, err)
	assert.Equal(t, "Gate", gate.LockName)

	dir.AssertExpectations(t)
}

func TestSync_ListFailure(t *testing.T) {
	svc, dir, _ := setup(t)
	dir.On("ListLocks", mock.Anything, 1).Return(nil, errors.New("invalid token"))

	_, err := svc.Sync(context.Background())
	assert.ErrorContains(t, err, "invalid token")
}

func TestHandleSync(t *testing.T) {
	svc, dir, st := setup(t)
	dir.On("ListLocks", mock.Anything, 1).Return(&devices.LockPage{Page: 1, Pages: 1}, nil)

	app := fiber.New()
	require.NoError(t, (&Feature{service: svc, handler: NewHandler(svc)}).Load(app))

	resp, err := app.Test(httptest.NewRequest("POST", "/directory/sync", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var report Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Zero(t, report.Locks)

	profiles, err := st.ListLockProfiles(context.Background())
	require.NoError(t, err)
	assert.Empty(t, profiles)
}

func TestHandleSync_Failure(t *testing.T) {
	svc, dir, _ := setup(t)
	dir.On("ListLocks", mock.Anything, 1).Return(nil, errors.New("invalid token"))

	app := fiber.New()
	NewHandler(svc).RegisterRoutes(app)

	resp, err := app.Test(httptest.NewRequest("POST", "/directory/sync", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
}

func TestHandleListLocks(t *testing.T) {
	svc, dir, _ := setup(t)
	dir.On("ListLocks", mock.Anything, 1).Return(&devices.LockPage{
		Locks: []devices.Lock{{ID: 21, Alias: "9 Side Gate"}, {ID: 11, Alias: "1117 Front Door"}},
		Page:  1, Pages: 1,
	}, nil)
	dir.On("ListPasscodeSlots", mock.Anything, mock.Anything, 1).Return(&devices.SlotPage{Page: 1, Pages: 1}, nil)

	app := fiber.New()
	NewHandler(svc).RegisterRoutes(app)

	resp, err := app.Test(httptest.NewRequest("GET", "/directory/locks", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	var empty []models.LockProfile
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&empty))
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = svc.Sync(context.Background())
	require.NoError(t, err)

	resp, err = app.Test(httptest.NewRequest("GET", "/directory/locks", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	var profiles []models.LockProfile
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&profiles))
	require.Len(t, profiles, 2)
	assert.Equal(t, "1117", profiles[0].StreetNumber)
	assert.Equal(t, "Front Door", profiles[0].LockName)
	assert.Equal(t, "9", profiles[1].StreetNumber)
	assert.True(t, profiles[1].Resolved())
}
