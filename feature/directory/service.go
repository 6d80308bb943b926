package directory

import (
	"context"
	"fmt"

	"lockcode-manager/core/devices"
	"lockcode-manager/core/models"
	"lockcode-manager/core/store"
	"lockcode-manager/feature/passcode"
	"lockcode-manager/feature/property"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Report summarizes one directory sync.
type Report struct {
	Locks            int      `json:"locks"`
	Matched          int      `json:"matched"`
	Unmatched        int      `json:"unmatched"`
	Slots            int      `json:"slots"`
	UnmatchedAliases []string `json:"unmatched_aliases"`
	Errors           []string `json:"errors"`
}

// Service copies the vendor's lock directory into lock profiles and slots.
type Service struct {
	dir    devices.Directory
	store  *store.Store
	logger *zap.Logger
	sf     singleflight.Group
}

// NewService creates a new directory sync service.
func NewService(dir devices.Directory, st *store.Store, logger *zap.Logger) *Service {
	return &Service{dir: dir, store: st, logger: logger}
}

// Locks returns every known lock profile ordered by street number and name.
func (s *Service) Locks(ctx context.Context) ([]models.LockProfile, error) {
	profiles, err := s.store.ListLockProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list lock profiles: %w", err)
	}
	if profiles == nil {
		profiles = []models.LockProfile{}
	}
	return profiles, nil
}

// Sync refreshes every lock profile and its passcode slots. Concurrent calls
// share one pass.
func (s *Service) Sync(ctx context.Context) (*Report, error) {
	v, err, shared := s.sf.Do("sync", func() (any, error) {
		return s.sync(ctx)
	})
	if shared {
		s.logger.Debug("Joined in-flight directory sync")
	}
	if err != nil {
		return nil, err
	}
	return v.(*Report), nil
}

func (s *Service) sync(ctx context.Context) (*Report, error) {
	report := &Report{UnmatchedAliases: []string{}, Errors: []string{}}

	for page := 1; ; page++ {
		p, err := s.dir.ListLocks(ctx, page)
		if err != nil {
			return report, fmt.Errorf("failed to list locks page %d: %w", page, err)
		}
		for _, lock := range p.Locks {
			report.Locks++
			s.syncLock(ctx, lock, report)
		}
		if !p.HasMore() {
			break
		}
	}

	s.logger.Info("Directory sync finished",
		zap.Int("locks", report.Locks),
		zap.Int("matched", report.Matched),
		zap.Int("unmatched", report.Unmatched),
		zap.Int("slots", report.Slots),
		zap.Int("errors", len(report.Errors)))
	return report, nil
}

func (s *Service) syncLock(ctx context.Context, lock devices.Lock, report *Report) {
	l := s.logger.With(zap.Int64("lock_id", lock.ID), zap.String("alias", lock.Alias))

	key, ok := property.Match(lock.Alias)
	if !ok {
		l.Warn("Lock alias does not name a property")
		report.Unmatched++
		report.UnmatchedAliases = append(report.UnmatchedAliases, lock.Alias)
		return
	}
	report.Matched++

	vendorID := lock.ID
	profile := &models.LockProfile{
		StreetNumber: key.StreetNumber,
		LockName:     key.LockName,
		Alias:        lock.Alias,
		VendorLockID: &vendorID,
	}
	if err := s.store.UpsertLockProfile(ctx, profile); err != nil {
		l.Error("Failed to save lock profile", zap.Error(err))
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", lock.Alias, err))
		return
	}

	n, err := passcode.RefreshSlots(ctx, s.dir, s.store, profile)
	report.Slots += n
	if err != nil {
		l.Error("Failed to refresh passcode slots", zap.Error(err))
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", lock.Alias, err))
	}
}
