// Package limiters provides the failure-lockout counter used by the OTP
// and password checks.
//
// # Counter semantics
//
// Key "<prefix>:<id>" holds either an integer count or the sentinel "locked".
// The first failure opens a window; later failures keep the remaining TTL.
// Reaching MaxAttempts replaces the count with the sentinel for a full window.
//
// # Architecture boundaries
//
// The limiter only counts. Mapping an [Outcome] to an error or response is
// left to the flows in internal/flows and the root engine.
//
// # What this package must NOT do
//
//   - Import almagestAuth or any sibling internal package.
//   - Delete the refresh verification record (that belongs to internal/stores).
package limiters
