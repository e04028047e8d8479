package almagestAuth

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidArgument marks client-fault input: missing fields, unknown
	// accounts, expired or used challenges, unverifiable refresh tokens.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrAuthFailure marks a counted wrong password or wrong code.
	ErrAuthFailure = errors.New("authentication failure")
	// ErrAccessDenied marks a locked, banned or otherwise refused identity.
	ErrAccessDenied = errors.New("access denied")
	// ErrInvalidToken marks a request whose credentials cannot be accepted.
	ErrInvalidToken = errors.New("invalid token")
	// ErrCodeGeneration marks a failure to produce codes, keys or signed tokens.
	ErrCodeGeneration = errors.New("code generation failed")
	// ErrSessionBackend marks a shared key-value store failure.
	ErrSessionBackend = errors.New("session backend unavailable")
	// ErrNotification marks a synchronous mail delivery failure.
	ErrNotification = errors.New("notification delivery failed")
	// ErrMemberNotFound is returned by MemberProvider lookups with no match.
	ErrMemberNotFound = errors.New("member not found")
	// ErrRateLimited marks a throttled send request.
	ErrRateLimited = errors.New("rate limited")
	// ErrEngineNotReady is returned when required dependencies are missing.
	ErrEngineNotReady = errors.New("engine not ready")
)

// ValidationError carries a user-facing message for a client-fault condition.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Unwrap() error { return ErrInvalidArgument }

// AuthFailureError carries the failure count after a counted attempt.
type AuthFailureError struct {
	Count int
}

func (e *AuthFailureError) Error() string {
	return fmt.Sprintf("authentication failed (%d attempts)", e.Count)
}

func (e *AuthFailureError) Unwrap() error { return ErrAuthFailure }

// AccessDeniedError carries the refusal reason and, for lockouts, the
// remaining lock duration.
type AccessDeniedError struct {
	Reason     string
	RetryAfter time.Duration
}

func (e *AccessDeniedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s, retry after %s", e.Reason, e.RetryAfter.Round(time.Second))
	}
	return e.Reason
}

func (e *AccessDeniedError) Unwrap() error { return ErrAccessDenied }

// InvalidTokenError carries why request credentials were refused.
type InvalidTokenError struct {
	Reason string
}

func (e *InvalidTokenError) Error() string { return "invalid token: " + e.Reason }

func (e *InvalidTokenError) Unwrap() error { return ErrInvalidToken }

func invalidArgument(msg string) error { return &ValidationError{Msg: msg} }

func invalidToken(reason string) error { return &InvalidTokenError{Reason: reason} }

const (
	msgLocked           = "locked"
	msgBanned           = "access blocked"
	msgNoChallenge      = "no challenge"
	msgExpired          = "expired"
	msgAlreadyUsed      = "already used"
	msgCodeMismatch     = "code mismatch"
	msgIdentityRequired = "member id or account required"
	msgRefreshRejected  = "refresh token rejected"
)
