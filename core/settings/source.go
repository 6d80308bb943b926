package settings

import "context"

// Static is a fixed map source, typically filled from application config.
type Static map[string]string

// GetSetting implements Source.
func (s Static) GetSetting(_ context.Context, key string) (string, bool, error) {
	v, ok := s[key]
	if !ok || v == "" {
		return "", false, nil
	}
	return v, true, nil
}

// Chain consults sources in order and returns the first hit.
type Chain []Source

// GetSetting implements Source.
func (c Chain) GetSetting(ctx context.Context, key string) (string, bool, error) {
	for _, src := range c {
		v, ok, err := src.GetSetting(ctx, key)
		if err != nil {
			return "", false, err
		}
		if ok {
			return v, true, nil
		}
	}
	return "", false, nil
}
