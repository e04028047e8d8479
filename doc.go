// Package almagestAuth is the authentication engine behind the Almagest
// member service: password login with a 4-digit one-time challenge, RS256
// access and refresh tokens, and a per-member failure lockout.
//
// The engine is configured once through [Builder] and is then safe for
// concurrent use. Durable state (members, challenges, the signing key) is
// reached through the [MemberProvider], [ChallengeStore] and [KeyStore]
// interfaces; shared short-lived state (failure counters, refresh
// verification records, send throttles) lives in Redis.
//
// # Login
//
// Login is two steps. [Engine.Login] checks the password and pushes a fresh
// code to the member's device through a delayed dispatcher.
// [Engine.IssueTokens] verifies the code and issues a token pair. Every
// password or code mismatch counts toward the lockout; once an identity is
// locked it is refused before any comparison until the window lapses.
//
// # Requests
//
// [Engine.AuthenticateRequest] accepts an access token, or falls back to the
// refresh token and returns a renewed access token. Issuing a refresh token
// replaces the member's verification record, so only the most recent refresh
// token ever validates.
//
// # Errors
//
// Failures are typed: [ValidationError], [AuthFailureError],
// [AccessDeniedError] and [InvalidTokenError] all match their sentinels with
// errors.Is. Infrastructure failures wrap [ErrCodeGeneration],
// [ErrSessionBackend] or [ErrNotification].
package almagestAuth
