// Package credentials lets an operator rotate vendor credentials at runtime.
//
// Values are written to the settings table, which takes precedence over static
// configuration, and the process-wide settings cache drops the key so the next
// vendor call reads the new value. Only known credential keys are accepted and
// values are never echoed back.
package credentials
