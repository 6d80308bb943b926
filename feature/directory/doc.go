// Package directory keeps lock profiles in step with the vendor's lock list.
//
// Each vendor lock alias is parsed into a (street number, lock name) key; matched
// locks are upserted with their vendor id and their passcode slots refreshed.
// Aliases that do not parse are reported and left alone. This is what turns an
// unresolved lock profile into one the engine can program.
package directory
