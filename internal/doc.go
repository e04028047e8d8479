// Package internal contains helper utilities that are private to almagestAuth,
// chiefly the secure code generator used for OTP challenges, refresh
// verification strings and temporary passwords.
//
// # Sub-packages
//
//   - audit: auth event type and sinks (slog, JSON writer, Kafka)
//   - config: environment and .env configuration loading
//   - flows: pure-function flow orchestrators for login, OTP verification and request authentication
//   - httpapi: HTTP route table, envelope and error mapping
//   - limiters: failure-lockout counter
//   - logging: context-aware logger over log/slog
//   - notify: deferred push and mail delivery
//   - rate: fixed-window send throttles
//   - stores: Redis refresh verification records
//
// # What this package must NOT do
//
//   - Export types that appear in the public almagestAuth API.
//   - Be imported by any package outside the almagestAuth module.
package internal
