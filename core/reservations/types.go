package reservations

import (
	"context"
	"fmt"
	"time"
)

// SettingAPIToken is the settings key holding the bearer token.
const SettingAPIToken = "reservations.api_token"

// dateLayout is the calendar date format used on the wire.
const dateLayout = "2006-01-02"

// Source is the subset of the reservation API the engine consumes.
type Source interface {
	FetchPage(ctx context.Context, page int, cutoff time.Time) (*Page, error)
	PatchReservation(ctx context.Context, id string, patch Patch) error
}

// Reservation is one stay due for lock action.
type Reservation struct {
	ID        string
	GuestName string
	CheckIn   time.Time
	CheckOut  time.Time
	Property  string
}

// Pagination describes where a page sits in the result set.
type Pagination struct {
	Page    int
	PerPage int
	Total   int
	HasMore bool
}

// Page is one page of FetchPage.
type Page struct {
	Reservations []Reservation
	Pagination   Pagination
}

// Patch is the best-effort annotation written back after a code change.
type Patch struct {
	DoorCode string `json:"door_code"`
}

// TransportError wraps a failure to reach the reservation API at all.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("reservations %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is a call the reservation API answered with a failure.
type APIError struct {
	Op      string
	Status  int
	Message string
	Raw     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("reservations %s: status %d: %s", e.Op, e.Status, e.Message)
}
