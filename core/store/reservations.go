package store

import (
	"context"
	"errors"

	"lockcode-manager/core/models"

	"gorm.io/gorm"
)

// UpsertReservation inserts or refreshes a reservation keyed by its external id.
// The existing lock link is preserved; use LinkReservation to change it.
func (s *Store) UpsertReservation(ctx context.Context, r *models.Reservation) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Reservation
		err := tx.Where("external_id = ?", r.ExternalID).Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(r).Error
		}
		if err != nil {
			return err
		}

		if err := tx.Model(&existing).Updates(map[string]any{
			"guest_name": r.GuestName,
			"check_in":   r.CheckIn,
			"check_out":  r.CheckOut,
			"property":   r.Property,
		}).Error; err != nil {
			return err
		}
		r.ID = existing.ID
		r.CreatedAt = existing.CreatedAt
		r.UpdatedAt = existing.UpdatedAt
		r.LockProfileID = existing.LockProfileID
		return nil
	})
}

// LinkReservation sets (or clears, with nil) the lock a reservation is matched to.
func (s *Store) LinkReservation(ctx context.Context, reservationID uint, lockProfileID *uint) error {
	return s.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id = ?", reservationID).
		Update("lock_profile_id", lockProfileID).Error
}

// GetReservation loads a reservation by external id.
func (s *Store) GetReservation(ctx context.Context, externalID string) (*models.Reservation, error) {
	var r models.Reservation
	if err := s.db.WithContext(ctx).Where("external_id = ?", externalID).Take(&r).Error; err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}
