package passcode

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"lockcode-manager/core/devices"
	"lockcode-manager/core/models"
	"lockcode-manager/core/reservations"
	"lockcode-manager/core/store"

	"go.uber.org/zap"
)

// Store is the persistence the updater reads and writes.
type Store interface {
	FindLockByVendorID(ctx context.Context, vendorLockID int64) (*models.LockProfile, error)
	ListSlots(ctx context.Context, lockProfileID uint) ([]models.PasscodeSlot, error)
	UpsertPasscodeSlot(ctx context.Context, slot *models.PasscodeSlot) error
	UpdateSlot(ctx context.Context, slotID uint, code string, startsAt, endsAt time.Time) error
}

// Request asks for one lock's guest slot to carry a new code.
type Request struct {
	VendorLockID int64
	// ReservationID is the upstream reservation to annotate; empty skips the patch.
	ReservationID string
	Code          string
	CheckIn       time.Time
	CheckOut      time.Time
}

// Updater issues passcode changes against a lock's guest slot.
type Updater struct {
	store    Store
	dir      devices.Directory
	upstream reservations.Source
	guests   devices.Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewUpdater creates an updater. upstream may be nil to disable annotation.
func NewUpdater(st Store, dir devices.Directory, upstream reservations.Source, guests devices.Config, logger *zap.Logger) *Updater {
	return &Updater{
		store:    st,
		dir:      dir,
		upstream: upstream,
		guests:   guests,
		logger:   logger,
		now:      time.Now,
	}
}

// Update programs req.Code onto the lock's guest slot. It never returns an
// error: every failure is classified into the Result.
func (u *Updater) Update(ctx context.Context, req Request) Result {
	started := u.now()
	l := u.logger.With(zap.Int64("lock_id", req.VendorLockID), zap.String("reservation_id", req.ReservationID))

	res := u.update(ctx, l, req)
	res.Latency = u.now().Sub(started)
	if !res.OK {
		l.Warn("Passcode update failed", zap.String("kind", string(res.Kind)), zap.String("message", res.Message))
	}
	return res
}

func (u *Updater) update(ctx context.Context, l *zap.Logger, req Request) Result {
	lock, err := u.store.FindLockByVendorID(ctx, req.VendorLockID)
	if errors.Is(err, store.ErrNotFound) {
		return failure(KindPersistence, fmt.Sprintf("no lock profile for vendor lock %d", req.VendorLockID), "")
	}
	if err != nil {
		return failure(KindPersistence, fmt.Sprintf("failed to load lock profile: %v", err), "")
	}

	slot, err := u.targetSlot(ctx, l, lock)
	if err != nil {
		return failure(KindPersistence, err.Error(), "")
	}

	window := PinWindow(req.CheckIn, req.CheckOut)
	resp, err := u.dir.ChangePasscode(ctx, devices.ChangeRequest{
		LockID:   req.VendorLockID,
		SlotID:   slot.VendorPasscodeID,
		Code:     req.Code,
		StartsAt: window.Start,
		EndsAt:   window.End,
	})
	if err != nil {
		var te *devices.TransportError
		if errors.As(err, &te) {
			return failure(KindNetwork, err.Error(), "")
		}
		return failure(KindUnknown, err.Error(), "")
	}
	if !resp.OK() {
		return failure(KindDeviceAPI, describe(resp), resp.Raw)
	}

	if err := u.store.UpdateSlot(ctx, slot.ID, req.Code, window.Start, window.End); err != nil {
		res := failure(KindPersistence, fmt.Sprintf("device updated but slot %d not saved: %v", slot.VendorPasscodeID, err), resp.Raw)
		res.Code = req.Code
		return res
	}

	res := Result{
		OK:            true,
		Code:          req.Code,
		SlotID:        slot.VendorPasscodeID,
		LockProfileID: lock.ID,
		Window:        window,
	}

	if u.upstream != nil && req.ReservationID != "" {
		if err := u.upstream.PatchReservation(ctx, req.ReservationID, reservations.Patch{DoorCode: req.Code}); err != nil {
			// The device is the source of truth; the annotation is cosmetic.
			l.Warn("Upstream reservation patch failed", zap.Error(err))
			res.UpstreamError = fmt.Sprintf("%s: %v", KindUpstreamAPI, err)
		}
	}

	l.Info("Passcode updated",
		zap.Int64("slot_id", slot.VendorPasscodeID),
		zap.Time("window_start", window.Start),
		zap.Time("window_end", window.End))
	return res
}

func describe(resp *devices.ChangeResponse) string {
	nested := "none"
	if resp.NestedStatus != nil {
		nested = fmt.Sprintf("%d", *resp.NestedStatus)
	}
	msg := resp.Message
	if msg == "" {
		msg = "vendor rejected the change"
	}
	return fmt.Sprintf("%s (status %d, errcode %s)", msg, resp.TopLevelStatus, nested)
}

// targetSlot picks the guest slot to program, refreshing the lock's slots from
// the vendor once when nothing local qualifies.
func (u *Updater) targetSlot(ctx context.Context, l *zap.Logger, lock *models.LockProfile) (*models.PasscodeSlot, error) {
	slots, err := u.store.ListSlots(ctx, lock.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load passcode slots: %w", err)
	}
	if slot := SelectSlot(slots, u.guests.IsGuestSlot); slot != nil {
		return slot, nil
	}

	l.Info("No eligible guest slot recorded, refreshing from vendor")
	if _, err := RefreshSlots(ctx, u.dir, u.store, lock); err != nil {
		return nil, fmt.Errorf("no active guest slot and refresh failed: %w", err)
	}
	slots, err = u.store.ListSlots(ctx, lock.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load passcode slots: %w", err)
	}
	if slot := SelectSlot(slots, u.guests.IsGuestSlot); slot != nil {
		return slot, nil
	}
	return nil, fmt.Errorf("no active guest slot on lock %s", lock.Alias)
}

// SelectSlot returns the active guest slot with the earliest start date, or nil.
// Ties on start date go to the lowest vendor passcode id.
func SelectSlot(slots []models.PasscodeSlot, isGuest func(name string) bool) *models.PasscodeSlot {
	var eligible []models.PasscodeSlot
	for _, s := range slots {
		if s.Active && s.StartsAt != nil && isGuest(s.Name) {
			eligible = append(eligible, s)
		}
	}
	if len(eligible) == 0 {
		return nil
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if !a.StartsAt.Equal(*b.StartsAt) {
			return a.StartsAt.Before(*b.StartsAt)
		}
		return a.VendorPasscodeID < b.VendorPasscodeID
	})
	return &eligible[0]
}

// SlotWriter persists slots fetched from the vendor.
type SlotWriter interface {
	UpsertPasscodeSlot(ctx context.Context, slot *models.PasscodeSlot) error
}

// RefreshSlots pages through the vendor's passcode list for a resolved lock,
// upserts every slot onto the profile and returns how many it stored.
func RefreshSlots(ctx context.Context, dir devices.Directory, st SlotWriter, lock *models.LockProfile) (int, error) {
	if !lock.Resolved() {
		return 0, fmt.Errorf("lock %s has no vendor id", lock.Alias)
	}
	stored := 0
	for page := 1; ; page++ {
		p, err := dir.ListPasscodeSlots(ctx, *lock.VendorLockID, page)
		if err != nil {
			return stored, err
		}
		for _, s := range p.Slots {
			row := &models.PasscodeSlot{
				VendorPasscodeID: s.ID,
				LockProfileID:    lock.ID,
				Name:             s.Name,
				Code:             s.Code,
				StartsAt:         s.StartsAt,
				EndsAt:           s.EndsAt,
				Active:           s.Active,
			}
			if err := st.UpsertPasscodeSlot(ctx, row); err != nil {
				return stored, err
			}
			stored++
		}
		if !p.HasMore() {
			return stored, nil
		}
	}
}
