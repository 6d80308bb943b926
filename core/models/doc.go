// Package models defines the GORM models persisted by the lock code engine.
//
// Reservations and lock profiles are the matched pair; passcode slots hang off a
// lock profile; runs, failure records and success records form the engine's
// ledger. The run_locks table holds exactly one row and is used as an atomic
// claim so that only one run can be in the running state.
package models
