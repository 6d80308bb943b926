// Package store is the GORM-backed persistence layer of the lock code engine.
//
// It owns every read and write the engine performs: reservation and lock profile
// upserts, passcode slot bookkeeping, the run lifecycle, and the failure and
// success ledgers. Run state transitions are conditional updates so that a run
// leaves the running state exactly once, and the single run_locks row is claimed
// with a compare-and-swap inside the same transaction that creates the run.
package store
