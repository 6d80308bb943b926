// Package property turns human-entered property descriptors and lock aliases
// into lock identity keys.
//
// "1117 Front Door" becomes {StreetNumber: "1117", LockName: "Front Door"}. The
// whole remainder after the street number is the lock name, so multi-word names
// survive. Descriptors without a leading number do not match.
package property
