package devices

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Setting keys read through the settings cache.
const (
	SettingClientID    = "devices.client_id"
	SettingAccessToken = "devices.access_token"
)

// Directory is the subset of the vendor API the engine consumes.
type Directory interface {
	ListLocks(ctx context.Context, page int) (*LockPage, error)
	ListPasscodeSlots(ctx context.Context, lockID int64, page int) (*SlotPage, error)
	ChangePasscode(ctx context.Context, req ChangeRequest) (*ChangeResponse, error)
}

// Lock is one device as listed by the vendor.
type Lock struct {
	ID    int64
	Alias string
	Name  string
}

// Slot is one passcode entry on a lock.
type Slot struct {
	ID       int64
	LockID   int64
	Name     string
	Code     string
	StartsAt *time.Time
	EndsAt   *time.Time
	Active   bool
}

// LockPage is one page of ListLocks.
type LockPage struct {
	Locks []Lock
	Page  int
	Pages int
}

// HasMore reports whether another page follows.
func (p *LockPage) HasMore() bool { return p.Page < p.Pages }

// SlotPage is one page of ListPasscodeSlots.
type SlotPage struct {
	Slots []Slot
	Page  int
	Pages int
}

// HasMore reports whether another page follows.
func (p *SlotPage) HasMore() bool { return p.Page < p.Pages }

// ChangeRequest updates one passcode slot.
type ChangeRequest struct {
	LockID   int64
	SlotID   int64
	Code     string
	StartsAt time.Time
	EndsAt   time.Time
}

// ChangeResponse is the typed outcome of a passcode change. The vendor can
// answer HTTP 200 while reporting a failure in the nested errcode, so both
// fields are kept.
type ChangeResponse struct {
	TopLevelStatus int
	NestedStatus   *int
	Message        string
	Raw            string
}

// OK reports whether both the top-level and the nested status signal success.
// A missing nested status defers to the top-level status.
func (r *ChangeResponse) OK() bool {
	if r.TopLevelStatus < http.StatusOK || r.TopLevelStatus >= http.StatusMultipleChoices {
		return false
	}
	return r.NestedStatus == nil || *r.NestedStatus == 0
}

// TransportError wraps a failure to reach the vendor API at all.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("devices %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is a list call the vendor answered with a failure.
type APIError struct {
	Op      string
	Status  int
	Code    int
	Message string
	Raw     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("devices %s: status %d errcode %d: %s", e.Op, e.Status, e.Code, e.Message)
}
