// Package utils provides small conversions for vendor lock ids, which the
// ledgers store as text.
package utils
