// Package reconciliation is the engine that keeps lock codes in step with
// reservations.
//
// A Runner pass reaps stuck runs, claims the single run slot, pages every due
// reservation from the source and processes them strictly one at a time:
//
//	upsert reservation -> match property -> resolve lock -> take lock lease
//	-> skip if the lock already succeeded today -> issue code -> ledger
//
// Failures in one reservation are written to the failure ledger (and its JSON
// mirror) and never abort the run. A failing reservation fetch does, and the run
// ends as failed. Killing a run only marks it terminal; the runner notices
// before the next reservation.
//
// The Reaper kills runs stuck in running past the timeout, RetryWorker replays
// failure records, Scheduler drives both on a cadence, and Handler exposes
// them over HTTP.
package reconciliation
