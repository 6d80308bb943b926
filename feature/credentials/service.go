package credentials

import (
	"context"
	"errors"
	"fmt"

	"lockcode-manager/core/devices"
	"lockcode-manager/core/reservations"
	"lockcode-manager/core/settings"

	"go.uber.org/zap"
)

// ErrUnknownKey is returned for keys that are not vendor credentials.
var ErrUnknownKey = errors.New("unknown credential key")

// Keys are the settings an operator may rotate.
var Keys = []string{
	devices.SettingClientID,
	devices.SettingAccessToken,
	reservations.SettingAPIToken,
}

// Writer persists a setting.
type Writer interface {
	PutSetting(ctx context.Context, key, value string) error
}

// Service writes credentials and evicts them from the cache.
type Service struct {
	writer Writer
	cache  *settings.Cache
	logger *zap.Logger
}

// NewService creates a new credentials service.
func NewService(writer Writer, cache *settings.Cache, logger *zap.Logger) *Service {
	return &Service{writer: writer, cache: cache, logger: logger}
}

func known(key string) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}

// Set stores value under key. The cached value is dropped only after the write
// succeeds.
func (s *Service) Set(ctx context.Context, key, value string) error {
	if !known(key) {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if err := s.writer.PutSetting(ctx, key, value); err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	s.cache.Invalidate(key)
	s.logger.Info("Credential rotated", zap.String("key", key))
	return nil
}
