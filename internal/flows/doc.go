// Package flows contains pure-function orchestrators for the engine's
// security-critical operations: the password step of login, OTP challenge
// verification and per-request authentication with silent renewal.
//
// Each flow function accepts a typed dependency struct of funcs and returns a
// result carrying a failure kind. The engine maps kinds onto its public
// errors, metrics and events.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import almagestAuth (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency funcs.
package flows
