package devices

import "strings"

// Config holds configuration for the smart-lock vendor API.
type Config struct {
	// BaseURL is the vendor API root.
	BaseURL string `mapstructure:"base_url" default:"https://euapi.ttlock.com"`
	// ClientID is the fallback application id when the settings table has none.
	ClientID string `mapstructure:"client_id" default:""`
	// AccessToken is the fallback OAuth token when the settings table has none.
	AccessToken string `mapstructure:"access_token" default:""`
	// PageSize is the number of locks or slots requested per page.
	PageSize int `mapstructure:"page_size" default:"100"`
	// TimeoutSeconds bounds each HTTP call.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
	// GuestSlotNames is a comma-separated list of slot labels treated as guest slots.
	GuestSlotNames string `mapstructure:"guest_slot_names" default:"Guest Code"`
}

// GuestSlots returns the normalized guest slot labels.
func (c Config) GuestSlots() []string {
	var names []string
	for _, n := range strings.Split(c.GuestSlotNames, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}

// IsGuestSlot reports whether name is one of the guest slot labels.
// Matching ignores case and surrounding whitespace.
func (c Config) IsGuestSlot(name string) bool {
	name = strings.TrimSpace(name)
	for _, n := range c.GuestSlots() {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}
