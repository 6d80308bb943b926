// Package middleware holds the Fiber middleware in front of the trigger API.
//
//   - auth: rejects requests without the configured X-API-Key.
//   - rayid: tags each request with a ray id, echoed in the response header
//     and attached to request-scoped log lines.
package middleware
