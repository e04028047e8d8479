// Package password implements member password hashing and verification with bcrypt.
//
// # Output format
//
// Hashes use the standard modular crypt format:
//
//	$2a$<cost>$<22-char salt><31-char hash>
//
// [Bcrypt.NeedsUpgrade] reports hashes produced with a lower cost than the
// configured one so the caller can re-hash on the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (minimum
// length, confirmation match) is enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other almagestAuth package.
//   - Log plaintext passwords at runtime.
package password
