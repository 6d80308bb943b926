// Package failurelog mirrors failure records into a JSON array.
//
// The database ledger is authoritative. The mirror exists for operators and
// tooling that read failed_updates.json directly: every failure is appended, and
// the retry path prunes entries once their record resolves. FileLog writes to
// local disk, ObjectLog to the configured storage bucket, Nop disables the mirror.
package failurelog
