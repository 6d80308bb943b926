// Package passcode issues new guest codes to a lock.
//
// Updater resolves the lock profile, picks the guest slot with the earliest
// active start date, pins the stay to the fixed 19:00/15:00 UTC window and asks
// the vendor to change the slot. A change counts only when the HTTP status and
// the vendor's nested errcode both report success. The new code is then saved on
// the slot and written back to the reservation source; a failed write-back is
// reported in Result.UpstreamError but does not fail the update.
package passcode
