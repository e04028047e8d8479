// Package rate provides Redis-backed fixed-window throttles for outbound
// sends that cost the operator money or spam a mailbox.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - "ars:" password reset per account
//   - "aes:" email code per member
//
// # What this package must NOT do
//
//   - Count authentication failures (that is internal/limiters).
//   - Be imported outside the almagestAuth module.
package rate
