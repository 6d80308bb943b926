package store

import (
	"context"
	"errors"
	"time"

	"lockcode-manager/core/models"

	"gorm.io/gorm"
)

// UpsertLockProfile inserts or refreshes a lock profile keyed by (street number, lock name).
func (s *Store) UpsertLockProfile(ctx context.Context, p *models.LockProfile) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.LockProfile
		err := tx.Where("street_number = ? AND lock_name = ?", p.StreetNumber, p.LockName).Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(p).Error
		}
		if err != nil {
			return err
		}

		if err := tx.Model(&existing).Updates(map[string]any{
			"alias":          p.Alias,
			"vendor_lock_id": p.VendorLockID,
		}).Error; err != nil {
			return err
		}
		p.ID = existing.ID
		p.CurrentCode = existing.CurrentCode
		p.ReservationID = existing.ReservationID
		p.CreatedAt = existing.CreatedAt
		return nil
	})
}

// FindLockByKey loads the profile for a matched property key.
func (s *Store) FindLockByKey(ctx context.Context, streetNumber, lockName string) (*models.LockProfile, error) {
	var p models.LockProfile
	err := s.db.WithContext(ctx).
		Where("street_number = ? AND lock_name = ?", streetNumber, lockName).
		Take(&p).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// FindLockByVendorID loads the profile linked to a vendor lock id.
func (s *Store) FindLockByVendorID(ctx context.Context, vendorLockID int64) (*models.LockProfile, error) {
	var p models.LockProfile
	if err := s.db.WithContext(ctx).Where("vendor_lock_id = ?", vendorLockID).Take(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// ListLockProfiles returns every known lock profile.
func (s *Store) ListLockProfiles(ctx context.Context) ([]models.LockProfile, error) {
	var profiles []models.LockProfile
	err := s.db.WithContext(ctx).Order("street_number, lock_name").Find(&profiles).Error
	return profiles, err
}

// UpdateLockCode caches the code confirmed on the device and the reservation holding it.
func (s *Store) UpdateLockCode(ctx context.Context, lockProfileID uint, code string, reservationID *uint) error {
	res := s.db.WithContext(ctx).
		Model(&models.LockProfile{}).
		Where("id = ?", lockProfileID).
		Updates(map[string]any{
			"current_code":   code,
			"reservation_id": reservationID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertPasscodeSlot inserts or refreshes a slot keyed by its vendor passcode id.
func (s *Store) UpsertPasscodeSlot(ctx context.Context, slot *models.PasscodeSlot) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.PasscodeSlot
		err := tx.Where("vendor_passcode_id = ?", slot.VendorPasscodeID).Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(slot).Error
		}
		if err != nil {
			return err
		}

		if err := tx.Model(&existing).Updates(map[string]any{
			"lock_profile_id": slot.LockProfileID,
			"name":            slot.Name,
			"code":            slot.Code,
			"starts_at":       slot.StartsAt,
			"ends_at":         slot.EndsAt,
			"active":          slot.Active,
		}).Error; err != nil {
			return err
		}
		slot.ID = existing.ID
		slot.CreatedAt = existing.CreatedAt
		return nil
	})
}

// ListSlots returns every slot recorded for a lock profile.
func (s *Store) ListSlots(ctx context.Context, lockProfileID uint) ([]models.PasscodeSlot, error) {
	var slots []models.PasscodeSlot
	err := s.db.WithContext(ctx).
		Where("lock_profile_id = ?", lockProfileID).
		Order("id").
		Find(&slots).Error
	return slots, err
}

// UpdateSlot stores the code and window confirmed on the device.
func (s *Store) UpdateSlot(ctx context.Context, slotID uint, code string, startsAt, endsAt time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&models.PasscodeSlot{}).
		Where("id = ?", slotID).
		Updates(map[string]any{
			"code":      code,
			"starts_at": startsAt,
			"ends_at":   endsAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
