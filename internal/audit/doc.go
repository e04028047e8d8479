// Package audit implements async event dispatching for auth-relevant operations
// such as logins, lockouts, OTP challenges, token issuance and account removal.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, slog, Kafka, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event]: structured record with id, timestamp, type, member, IP, metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit; the Engine does.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import almagestAuth or any sibling internal package.
//   - Block the request path on sink I/O.
package audit
