package reconciliation

import "time"

// Config holds configuration for the reconciliation engine.
type Config struct {
	// StuckTimeoutMinutes is how long a run may stay running before the reaper kills it.
	StuckTimeoutMinutes int `mapstructure:"stuck_timeout_minutes" default:"60"`
	// ReapIntervalMinutes is the cadence of the periodic reaper.
	ReapIntervalMinutes int `mapstructure:"reap_interval_minutes" default:"15"`
	// RunIntervalMinutes schedules runs from the start command; 0 disables scheduled runs.
	RunIntervalMinutes int `mapstructure:"run_interval_minutes" default:"0"`
	// LeaseTTLSeconds bounds how long a crashed worker can hold a lock's lease.
	LeaseTTLSeconds int `mapstructure:"lease_ttl_seconds" default:"120"`
	// LeaseWaitSeconds bounds how long a worker waits for a lock's lease.
	LeaseWaitSeconds int `mapstructure:"lease_wait_seconds" default:"30"`
	// SettingsTTLSeconds is the lifetime of cached credential strings.
	SettingsTTLSeconds int `mapstructure:"settings_ttl_seconds" default:"300"`
	// FailureLogBackend selects the failure mirror (file, storage, none).
	FailureLogBackend string `mapstructure:"failure_log_backend" default:"file"`
	// FailureLogPath is the mirror file path, or object key for the storage backend.
	FailureLogPath string `mapstructure:"failure_log_path" default:"failed_updates.json"`
}

func minutes(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Minute
}

func seconds(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Second
}

// StuckTimeout returns the stuck-run threshold.
func (c Config) StuckTimeout() time.Duration { return minutes(c.StuckTimeoutMinutes, 60) }

// ReapInterval returns the periodic reaper cadence.
func (c Config) ReapInterval() time.Duration { return minutes(c.ReapIntervalMinutes, 15) }

// RunInterval returns the scheduled run cadence, zero when disabled.
func (c Config) RunInterval() time.Duration {
	if c.RunIntervalMinutes <= 0 {
		return 0
	}
	return time.Duration(c.RunIntervalMinutes) * time.Minute
}

// LeaseTTL returns the per-lock lease lifetime.
func (c Config) LeaseTTL() time.Duration { return seconds(c.LeaseTTLSeconds, 120) }

// LeaseWait returns the per-lock lease wait.
func (c Config) LeaseWait() time.Duration { return seconds(c.LeaseWaitSeconds, 30) }

// SettingsTTL returns the settings cache lifetime.
func (c Config) SettingsTTL() time.Duration { return seconds(c.SettingsTTLSeconds, 300) }
