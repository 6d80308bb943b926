package store

import (
	"context"
	"errors"
	"fmt"

	"lockcode-manager/core/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound is returned when an expected row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrRunInProgress is returned when another run already holds the run lock.
	ErrRunInProgress = errors.New("a reconciliation run is already in progress")
	// ErrRunNotRunning is returned when a transition requires a running run.
	ErrRunNotRunning = errors.New("run is not running")
)

// Store is the GORM-backed persistent store for the engine.
type Store struct {
	db *gorm.DB
}

// New creates a store over an open connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the schema and seeds the run lock row.
func (s *Store) Migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	if err := ensureRunLock(db); err != nil {
		return fmt.Errorf("failed to seed run lock: %w", err)
	}
	return nil
}

func ensureRunLock(db *gorm.DB) error {
	return db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.RunLock{ID: models.RunLockID}).Error
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
