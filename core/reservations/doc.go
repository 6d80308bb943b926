// Package reservations is the client for the reservation source API.
//
// FetchPage reads reservations due for lock action, one page at a time;
// PatchReservation annotates a reservation with its new door code. Entries that
// fail validation are dropped with a warning so a single malformed record cannot
// stall a run.
package reservations
