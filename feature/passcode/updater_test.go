package passcode

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"lockcode-manager/core/database"
	"lockcode-manager/core/devices"
	devmocks "lockcode-manager/core/devices/mocks"
	"lockcode-manager/core/models"
	"lockcode-manager/core/reservations"
	resmocks "lockcode-manager/core/reservations/mocks"
	"lockcode-manager/core/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	checkIn  = time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	checkOut = time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	store    *store.Store
	dir      *devmocks.Directory
	upstream *resmocks.Source
	updater  *Updater
	lock     *models.LockProfile
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Connect(database.Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)
	st := store.New(db)
	require.NoError(t, st.Migrate(context.Background()))

	vendorID := int64(11)
	lock := &models.LockProfile{StreetNumber: "1117", LockName: "Front Door", Alias: "1117 Front Door", VendorLockID: &vendorID}
	require.NoError(t, st.UpsertLockProfile(context.Background(), lock))

	dir := new(devmocks.Directory)
	upstream := new(resmocks.Source)
	u := NewUpdater(st, dir, upstream, devices.Config{GuestSlotNames: "Guest Code"}, zap.NewNop())
	return &fixture{store: st, dir: dir, upstream: upstream, updater: u, lock: lock}
}

func (f *fixture) addSlot(t *testing.T, vendorID int64, name string, active bool, start *time.Time) {
	t.Helper()
	require.NoError(t, f.store.UpsertPasscodeSlot(context.Background(), &models.PasscodeSlot{
		VendorPasscodeID: vendorID, LockProfileID: f.lock.ID, Name: name, Active: active, StartsAt: start,
	}))
}

func at(t time.Time) *time.Time { return &t }

func request() Request {
	return Request{VendorLockID: 11, ReservationID: "R-1", Code: "4821", CheckIn: checkIn.Add(9 * time.Hour), CheckOut: checkOut.Add(22 * time.Hour)}
}

func ok() *devices.ChangeResponse {
	zero := 0
	return &devices.ChangeResponse{TopLevelStatus: 200, NestedStatus: &zero, Raw: `{"errcode":0}`}
}

func TestPinWindow(t *testing.T) {
	w := PinWindow(time.Date(2026, 10, 15, 23, 59, 0, 0, time.UTC), time.Date(2026, 10, 18, 1, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 10, 15, 19, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, time.Date(2026, 10, 18, 15, 0, 0, 0, time.UTC), w.End)
}

func TestRandomCode(t *testing.T) {
	re := regexp.MustCompile(`^\d{4}$`)
	for i := 0; i < 200; i++ {
		assert.Regexp(t, re, RandomCode())
	}
}

func TestSelectSlot(t *testing.T) {
	isGuest := devices.Config{GuestSlotNames: "Guest Code"}.IsGuestSlot
	early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(24 * time.Hour)

	slots := []models.PasscodeSlot{
		{VendorPasscodeID: 1, Name: "Guest Code", Active: true, StartsAt: &late},
		{VendorPasscodeID: 2, Name: "Cleaner", Active: true, StartsAt: at(early.Add(-time.Hour))},
		{VendorPasscodeID: 3, Name: "Guest Code", Active: false, StartsAt: at(early.Add(-time.Hour))},
		{VendorPasscodeID: 4, Name: "Guest Code", Active: true},
		{VendorPasscodeID: 6, Name: "Guest Code", Active: true, StartsAt: &early},
		{VendorPasscodeID: 5, Name: "guest code", Active: true, StartsAt: &early},
	}
	got := SelectSlot(slots, isGuest)
	require.NotNil(t, got)
	assert.Equal(t, int64(5), got.VendorPasscodeID)

	assert.Nil(t, SelectSlot(slots[1:4], isGuest))
}

func TestUpdate_Success(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.addSlot(t, 501, "Guest Code", true, at(checkIn))

	want := devices.ChangeRequest{
		LockID: 11, SlotID: 501, Code: "4821",
		StartsAt: time.Date(2026, 10, 15, 19, 0, 0, 0, time.UTC),
		EndsAt:   time.Date(2026, 10, 18, 15, 0, 0, 0, time.UTC),
	}
	f.dir.On("ChangePasscode", mock.Anything, want).Return(ok(), nil).Once()
	f.upstream.On("PatchReservation", mock.Anything, "R-1", reservations.Patch{DoorCode: "4821"}).Return(nil).Once()

	res := f.updater.Update(ctx, request())
	require.True(t, res.OK, res.Message)
	assert.Equal(t, "4821", res.Code)
	assert.Equal(t, int64(501), res.SlotID)
	assert.Equal(t, f.lock.ID, res.LockProfileID)
	assert.Empty(t, res.UpstreamError)

	slots, err := f.store.ListSlots(ctx, f.lock.ID)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "4821", slots[0].Code)
	assert.True(t, want.StartsAt.Equal(*slots[0].StartsAt))
	assert.True(t, want.EndsAt.Equal(*slots[0].EndsAt))

	f.dir.AssertExpectations(t)
	f.upstream.AssertExpectations(t)
}

func TestUpdate_NestedFailure(t *testing.T) {
	f := setup(t)
	f.addSlot(t, 501, "Guest Code", true, at(checkIn))

	code := -3008
	f.dir.On("ChangePasscode", mock.Anything, mock.Anything).
		Return(&devices.ChangeResponse{TopLevelStatus: 200, NestedStatus: &code, Message: "gateway offline", Raw: `{"errcode":-3008}`}, nil)

	res := f.updater.Update(context.Background(), request())
	assert.False(t, res.OK)
	assert.Equal(t, KindDeviceAPI, res.Kind)
	assert.Contains(t, res.Message, "gateway offline")
	assert.Equal(t, `{"errcode":-3008}`, res.Raw)
	f.upstream.AssertNotCalled(t, "PatchReservation", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdate_TopLevelFailure(t *testing.T) {
	f := setup(t)
	f.addSlot(t, 501, "Guest Code", true, at(checkIn))
	f.dir.On("ChangePasscode", mock.Anything, mock.Anything).
		Return(&devices.ChangeResponse{TopLevelStatus: 502, Raw: "bad gateway"}, nil)

	res := f.updater.Update(context.Background(), request())
	assert.Equal(t, KindDeviceAPI, res.Kind)
}

func TestUpdate_Network(t *testing.T) {
	f := setup(t)
	f.addSlot(t, 501, "Guest Code", true, at(checkIn))
	f.dir.On("ChangePasscode", mock.Anything, mock.Anything).
		Return(nil, &devices.TransportError{Op: "change passcode", Err: errors.New("connection refused")})

	res := f.updater.Update(context.Background(), request())
	assert.False(t, res.OK)
	assert.Equal(t, KindNetwork, res.Kind)
}

func TestUpdate_UnknownLock(t *testing.T) {
	f := setup(t)
	req := request()
	req.VendorLockID = 999

	res := f.updater.Update(context.Background(), req)
	assert.False(t, res.OK)
	assert.Equal(t, KindPersistence, res.Kind)
	f.dir.AssertNotCalled(t, "ChangePasscode", mock.Anything, mock.Anything)
}

func TestUpdate_RefreshesSlotsOnce(t *testing.T) {
	f := setup(t)
	f.dir.On("ListPasscodeSlots", mock.Anything, int64(11), 1).Return(&devices.SlotPage{
		Slots: []devices.Slot{{ID: 777, Name: "Guest Code", Active: true, StartsAt: at(checkIn)}},
		Page:  1, Pages: 1,
	}, nil).Once()
	f.dir.On("ChangePasscode", mock.Anything, mock.MatchedBy(func(r devices.ChangeRequest) bool {
		return r.SlotID == 777
	})).Return(ok(), nil).Once()
	f.upstream.On("PatchReservation", mock.Anything, "R-1", mock.Anything).Return(nil)

	res := f.updater.Update(context.Background(), request())
	require.True(t, res.OK, res.Message)
	f.dir.AssertExpectations(t)
}

func TestUpdate_NoGuestSlot(t *testing.T) {
	f := setup(t)
	f.addSlot(t, 501, "Cleaner", true, at(checkIn))
	f.dir.On("ListPasscodeSlots", mock.Anything, int64(11), 1).Return(&devices.SlotPage{Page: 1, Pages: 1}, nil).Once()

	res := f.updater.Update(context.Background(), request())
	assert.False(t, res.OK)
	assert.Equal(t, KindPersistence, res.Kind)
	f.dir.AssertNumberOfCalls(t, "ListPasscodeSlots", 1)
	f.dir.AssertNotCalled(t, "ChangePasscode", mock.Anything, mock.Anything)
}

func TestUpdate_UpstreamFailureIsNotFatal(t *testing.T) {
	f := setup(t)
	f.addSlot(t, 501, "Guest Code", true, at(checkIn))
	f.dir.On("ChangePasscode", mock.Anything, mock.Anything).Return(ok(), nil)
	f.upstream.On("PatchReservation", mock.Anything, "R-1", mock.Anything).Return(errors.New("503 from upstream"))

	res := f.updater.Update(context.Background(), request())
	assert.True(t, res.OK)
	assert.Empty(t, res.Kind)
	assert.Contains(t, res.UpstreamError, "upstream_api")
	assert.Contains(t, res.UpstreamError, "503 from upstream")
}

func TestUpdate_NoReservationSkipsPatch(t *testing.T) {
	f := setup(t)
	f.addSlot(t, 501, "Guest Code", true, at(checkIn))
	f.dir.On("ChangePasscode", mock.Anything, mock.Anything).Return(ok(), nil)

	req := request()
	req.ReservationID = ""
	res := f.updater.Update(context.Background(), req)
	assert.True(t, res.OK)
	f.upstream.AssertNotCalled(t, "PatchReservation", mock.Anything, mock.Anything, mock.Anything)
}
