package almagestAuth

import (
	"context"
	"errors"
	"fmt"

	"github.com/almagest-io/almagestAuth/internal/flows"
)

// AuthenticateRequest describes the authenticaterequest operation and its observable behavior.
//
// AuthenticateRequest authenticates one request from its optional access and refresh tokens.
// With neither it returns an anonymous result. The access token is tried first; the refresh
// token is consulted only when access is absent or invalid, and on success a renewed access
// token is returned in AuthResult.RenewedAccess. Refusals are *InvalidTokenError.
func (e *Engine) AuthenticateRequest(ctx context.Context, access, refresh string) (*AuthResult, error) {
	var member Member
	deps := e.flows.Authenticate
	deps.ResolveMember = func(ctx context.Context, id string) error {
		m, err := e.members.GetMemberByID(ctx, id)
		if err != nil {
			return err
		}
		member = m
		return nil
	}

	res := flows.RunAuthenticateRequest(ctx, access, refresh, deps)
	switch res.Failure {
	case flows.AuthenticateFailureNone:
		if res.Anonymous {
			return &AuthResult{Anonymous: true}, nil
		}
		if res.RenewedAccess != "" {
			e.metrics.Inc(MetricAccessRenewed)
			e.emitEvent(ctx, eventAccessRenewed, true, res.MemberID, nil, nil)
		}
		return &AuthResult{
			MemberID:      res.MemberID,
			Member:        member,
			RenewedAccess: res.RenewedAccess,
		}, nil
	case flows.AuthenticateFailureBackend:
		e.metrics.Inc(MetricInvalidToken)
		return nil, fmt.Errorf("%w: %v", ErrSessionBackend, res.Err)
	case flows.AuthenticateFailureRenewal:
		e.metrics.Inc(MetricInvalidToken)
		if errors.Is(res.Err, ErrCodeGeneration) {
			return nil, res.Err
		}
		return nil, fmt.Errorf("%w: %v", ErrCodeGeneration, res.Err)
	}

	e.metrics.Inc(MetricInvalidToken)
	switch res.Failure {
	case flows.AuthenticateFailureUnresolved:
		return nil, invalidToken("unknown subject")
	case flows.AuthenticateFailureRefreshRejected:
		return nil, invalidToken(msgRefreshRejected)
	default:
		return nil, invalidToken(msgExpired)
	}
}

// Logout clears the member's failure counter and refresh record so every
// outstanding refresh token stops validating.
func (e *Engine) Logout(ctx context.Context, memberID string) {
	e.ResetStatus(ctx, memberID)
	e.metrics.Inc(MetricLogout)
	e.emitEvent(ctx, eventLogout, true, memberID, nil, nil)
}
