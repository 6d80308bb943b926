// Package logger builds the zap logger used across the service.
//
// Level "debug" selects zap's development config; anything else uses the
// production config. Format picks json or console encoding.
//
// Two helpers scope a logger:
//
//   - WithRayID adds the ray id of a Fiber request.
//   - WithRun adds the id of a reconciliation run.
//
// Typical use:
//
//	log, _ := logger.New(&logger.Config{Level: "info", Format: "json"})
//	l := logger.WithRun(log, run.ID)
//	l.Info("Fetched reservations", zap.Int("count", n))
package logger
