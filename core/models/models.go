package models

import (
	"time"
)

// RunStatus is the lifecycle state of a ReconciliationRun.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusKilled    RunStatus = "killed"
)

// IsTerminal reports whether the status can no longer change.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusKilled
}

// UnknownLockID is stored on failure records that never resolved to a vendor lock.
const UnknownLockID = "unknown"

// Reservation is an externally sourced booking, upserted by ExternalID on every run.
type Reservation struct {
	ID            uint      `gorm:"column:id;primaryKey" json:"id"`
	ExternalID    string    `gorm:"column:external_id;size:64;uniqueIndex;not null" json:"external_id"`
	GuestName     string    `gorm:"column:guest_name;size:255" json:"guest_name"`
	CheckIn       time.Time `gorm:"column:check_in" json:"check_in"`
	CheckOut      time.Time `gorm:"column:check_out" json:"check_out"`
	Property      string    `gorm:"column:property;size:255" json:"property"`
	LockProfileID *uint     `gorm:"column:lock_profile_id;index" json:"lock_profile_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Reservation) TableName() string {
	return "reservations"
}

// LockProfile is the local view of a vendor lock, keyed by (street number, lock name).
// VendorLockID is nil while the lock is unresolved.
type LockProfile struct {
	ID            uint           `gorm:"column:id;primaryKey" json:"id"`
	StreetNumber  string         `gorm:"column:street_number;size:32;uniqueIndex:idx_lock_key;not null" json:"street_number"`
	LockName      string         `gorm:"column:lock_name;size:128;uniqueIndex:idx_lock_key;not null" json:"lock_name"`
	Alias         string         `gorm:"column:alias;size:255" json:"alias"`
	VendorLockID  *int64         `gorm:"column:vendor_lock_id;index" json:"vendor_lock_id"`
	CurrentCode   string         `gorm:"column:current_code;size:16" json:"current_code"`
	ReservationID *uint          `gorm:"column:reservation_id" json:"reservation_id"`
	Slots         []PasscodeSlot `gorm:"foreignKey:LockProfileID" json:"slots,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (LockProfile) TableName() string {
	return "lock_profiles"
}

// Resolved reports whether the profile is linked to a vendor lock.
func (l LockProfile) Resolved() bool {
	return l.VendorLockID != nil && *l.VendorLockID > 0
}

// PasscodeSlot is a named, time-windowed code entry on a lock.
type PasscodeSlot struct {
	ID               uint       `gorm:"column:id;primaryKey" json:"id"`
	VendorPasscodeID int64      `gorm:"column:vendor_passcode_id;uniqueIndex;not null" json:"vendor_passcode_id"`
	LockProfileID    uint       `gorm:"column:lock_profile_id;index;not null" json:"lock_profile_id"`
	Name             string     `gorm:"column:name;size:128" json:"name"`
	Code             string     `gorm:"column:code;size:16" json:"code"`
	StartsAt         *time.Time `gorm:"column:starts_at" json:"starts_at"`
	EndsAt           *time.Time `gorm:"column:ends_at" json:"ends_at"`
	Active           bool       `gorm:"column:active" json:"active"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (PasscodeSlot) TableName() string {
	return "passcode_slots"
}

// Run is one reconciliation pass.
type Run struct {
	ID           uint       `gorm:"column:id;primaryKey" json:"id"`
	Status       RunStatus  `gorm:"column:status;size:16;index;not null" json:"status"`
	StartedAt    time.Time  `gorm:"column:started_at;index;not null" json:"started_at"`
	EndedAt      *time.Time `gorm:"column:ended_at" json:"ended_at"`
	DurationMs   *int64     `gorm:"column:duration_ms" json:"duration_ms"`
	Processed    int        `gorm:"column:processed" json:"processed"`
	Succeeded    int        `gorm:"column:succeeded" json:"succeeded"`
	Failed       int        `gorm:"column:failed" json:"failed"`
	Skipped      int        `gorm:"column:skipped" json:"skipped"`
	Error        string     `gorm:"column:error;type:text" json:"error,omitempty"`
	ErrorContext string     `gorm:"column:error_context;type:text" json:"error_context,omitempty"`
}

// TableName specifies the table name for GORM
func (Run) TableName() string {
	return "reconciliation_runs"
}

// Counters are the per-run tallies persisted as the run progresses.
type Counters struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Counters returns the run's tallies.
func (r Run) Counters() Counters {
	return Counters{Processed: r.Processed, Succeeded: r.Succeeded, Failed: r.Failed, Skipped: r.Skipped}
}

// RunLockID is the primary key of the single run_locks row.
const RunLockID = 1

// RunLock is a single-row claim table guarding "one running run at a time".
type RunLock struct {
	ID        uint       `gorm:"column:id;primaryKey"`
	RunID     *uint      `gorm:"column:run_id"`
	ClaimedAt *time.Time `gorm:"column:claimed_at"`
}

// TableName specifies the table name for GORM
func (RunLock) TableName() string {
	return "run_locks"
}

// FailureRecord is one failed update attempt, the unit retried by the retry worker.
type FailureRecord struct {
	ID            uint       `gorm:"column:id;primaryKey" json:"id"`
	RunID         *uint      `gorm:"column:run_id;index" json:"run_id"`
	ReservationID string     `gorm:"column:reservation_id;size:64;index" json:"reservation_id"`
	LockID        string     `gorm:"column:lock_id;size:64;index" json:"lock_id"`
	Property      string     `gorm:"column:property;size:255" json:"property"`
	GuestName     string     `gorm:"column:guest_name;size:255" json:"guest_name"`
	CheckIn       time.Time  `gorm:"column:check_in" json:"check_in"`
	CheckOut      time.Time  `gorm:"column:check_out" json:"check_out"`
	Kind          string     `gorm:"column:kind;size:32" json:"kind"`
	Message       string     `gorm:"column:message;type:text" json:"message"`
	RawError      string     `gorm:"column:raw_error;type:text" json:"raw_error,omitempty"`
	RetryCount    int        `gorm:"column:retry_count" json:"retry_count"`
	LastRetryAt   *time.Time `gorm:"column:last_retry_at" json:"last_retry_at"`
	Resolved      bool       `gorm:"column:resolved;index" json:"resolved"`
	Retryable     bool       `gorm:"column:retryable" json:"retryable"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (FailureRecord) TableName() string {
	return "failure_records"
}

// SuccessRecord is one confirmed device update.
type SuccessRecord struct {
	ID            uint      `gorm:"column:id;primaryKey" json:"id"`
	RunID         *uint     `gorm:"column:run_id;index" json:"run_id"`
	FailureID     *uint     `gorm:"column:failure_id" json:"failure_id,omitempty"`
	ReservationID string    `gorm:"column:reservation_id;size:64;index" json:"reservation_id"`
	LockID        string    `gorm:"column:lock_id;size:64;index:idx_success_lock_day" json:"lock_id"`
	Property      string    `gorm:"column:property;size:255" json:"property"`
	GuestName     string    `gorm:"column:guest_name;size:255" json:"guest_name"`
	CheckIn       time.Time `gorm:"column:check_in" json:"check_in"`
	CheckOut      time.Time `gorm:"column:check_out" json:"check_out"`
	Code          string    `gorm:"column:code;size:16" json:"code"`
	LatencyMs     int64     `gorm:"column:latency_ms" json:"latency_ms"`
	UpstreamError string    `gorm:"column:upstream_error;type:text" json:"upstream_error,omitempty"`
	CreatedAt     time.Time `gorm:"index:idx_success_lock_day" json:"created_at"`
}

// TableName specifies the table name for GORM
func (SuccessRecord) TableName() string {
	return "success_records"
}

// Setting is a key/value configuration entry (credential strings and the like).
type Setting struct {
	Key       string    `gorm:"column:key;primaryKey;size:128"`
	Value     string    `gorm:"column:value;type:text"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName specifies the table name for GORM
func (Setting) TableName() string {
	return "settings"
}

// All returns every model managed by the schema migration.
func All() []any {
	return []any{
		&Reservation{},
		&LockProfile{},
		&PasscodeSlot{},
		&Run{},
		&RunLock{},
		&FailureRecord{},
		&SuccessRecord{},
		&Setting{},
	}
}
