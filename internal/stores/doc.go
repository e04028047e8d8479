// Package stores provides the Redis-backed refresh verification record:
// one random string per member, mirrored inside the member's refresh token.
//
// # Design
//
// The record is a plain string value with a TTL equal to the refresh token
// lifetime. Rotation is an overwrite (last writer wins); there is no
// transaction. Comparison of the presented value uses constant-time compare.
//
// # Architecture boundaries
//
// This package owns persistence only. It does NOT generate verification
// strings or sign tokens; those belong to internal and the jwt package.
//
// # What this package must NOT do
//
//   - Import almagestAuth or any sibling internal package.
//   - Log or expose stored verification strings.
package stores
