package passcode

import (
	"time"
)

// Kind classifies why an update failed.
type Kind string

const (
	// KindDeviceAPI means the vendor answered but signalled failure.
	KindDeviceAPI Kind = "device_api"
	// KindUpstreamAPI means the reservation annotation failed.
	KindUpstreamAPI Kind = "upstream_api"
	// KindNetwork means an API could not be reached.
	KindNetwork Kind = "network"
	// KindPersistence means an expected local record is missing or unwritable.
	KindPersistence Kind = "persistence"
	// KindUnknown covers everything else, including panics.
	KindUnknown Kind = "unknown"
)

// Window is the validity period programmed onto a slot.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Fixed check-in and check-out hours, in UTC.
const (
	CheckInHourUTC  = 19
	CheckOutHourUTC = 15
)

// PinWindow maps a stay onto the fixed check-in/check-out policy: 19:00 UTC on
// the check-in date and 15:00 UTC on the check-out date. The caller's time of
// day is ignored.
func PinWindow(checkIn, checkOut time.Time) Window {
	in := checkIn.UTC()
	out := checkOut.UTC()
	return Window{
		Start: time.Date(in.Year(), in.Month(), in.Day(), CheckInHourUTC, 0, 0, 0, time.UTC),
		End:   time.Date(out.Year(), out.Month(), out.Day(), CheckOutHourUTC, 0, 0, 0, time.UTC),
	}
}

// Result is the outcome of one update. Kind, Message and Raw are set only
// when OK is false; UpstreamError may be set on success.
type Result struct {
	OK            bool
	Kind          Kind
	Message       string
	Raw           string
	Code          string
	SlotID        int64
	LockProfileID uint
	Window        Window
	Latency       time.Duration
	UpstreamError string
}

func failure(kind Kind, msg, raw string) Result {
	return Result{Kind: kind, Message: msg, Raw: raw}
}
