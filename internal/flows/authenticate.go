package flows

import (
	"context"
	"errors"
	"time"
)

// AuthenticateFailureKind classifies request authentication failures.
type AuthenticateFailureKind int

const (
	AuthenticateFailureNone AuthenticateFailureKind = iota
	AuthenticateFailureUnresolved
	AuthenticateFailureExpired
	AuthenticateFailureRefreshRejected
	AuthenticateFailureRenewal
	AuthenticateFailureBackend
)

// AuthenticateResult is the outcome of one request. Anonymous is set when
// neither credential was presented.
type AuthenticateResult struct {
	Failure       AuthenticateFailureKind
	Err           error
	MemberID      string
	Anonymous     bool
	RenewedAccess string
}

// AuthenticateDeps captures request authentication dependencies.
type AuthenticateDeps struct {
	// Subject reads sub from a correctly signed token, expired or not.
	Subject func(string) (string, error)
	// ResolveMember returns MemberNotFound when the subject has no member.
	ResolveMember  func(context.Context, string) error
	MemberNotFound error

	ValidateAccess  func(token, memberID string) bool
	ValidateRefresh func(context.Context, string) (string, error)
	IssueAccess     func(string) (string, error)

	ObserveLatency func(time.Duration)
	Now            func() time.Time
}

// RunAuthenticateRequest authenticates a request carrying optional access
// and refresh tokens. The access token is always tried first; the refresh
// token is consulted only when access is absent or fails, and a successful
// refresh yields a renewed access token.
func RunAuthenticateRequest(ctx context.Context, access, refresh string, deps AuthenticateDeps) AuthenticateResult {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ObserveLatency != nil {
		start := deps.Now()
		defer func() { deps.ObserveLatency(deps.Now().Sub(start)) }()
	}

	if access == "" && refresh == "" {
		return AuthenticateResult{Anonymous: true}
	}

	subjectToken := access
	if subjectToken == "" {
		subjectToken = refresh
	}
	memberID, err := deps.Subject(subjectToken)
	if err != nil || memberID == "" {
		return AuthenticateResult{Failure: AuthenticateFailureUnresolved, Err: err}
	}
	if err := deps.ResolveMember(ctx, memberID); err != nil {
		if deps.MemberNotFound != nil && errors.Is(err, deps.MemberNotFound) {
			return AuthenticateResult{Failure: AuthenticateFailureUnresolved, Err: err}
		}
		return AuthenticateResult{Failure: AuthenticateFailureBackend, Err: err}
	}

	if access != "" && deps.ValidateAccess(access, memberID) {
		return AuthenticateResult{MemberID: memberID}
	}

	if refresh == "" {
		return AuthenticateResult{Failure: AuthenticateFailureExpired}
	}

	refreshSubject, err := deps.ValidateRefresh(ctx, refresh)
	if err != nil || refreshSubject != memberID {
		return AuthenticateResult{Failure: AuthenticateFailureRefreshRejected, Err: err}
	}

	renewed, err := deps.IssueAccess(memberID)
	if err != nil {
		return AuthenticateResult{Failure: AuthenticateFailureRenewal, Err: err}
	}

	return AuthenticateResult{MemberID: memberID, RenewedAccess: renewed}
}
