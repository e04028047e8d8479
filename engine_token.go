package almagestAuth

import (
	"context"
	"fmt"

	"github.com/almagest-io/almagestAuth/internal"
)

// IssueAccess describes the issueaccess operation and its observable behavior.
//
// IssueAccess signs an access token for memberID valid for JWT.AccessTTL. It touches no shared state.
func (e *Engine) IssueAccess(memberID string) (string, error) {
	if memberID == "" {
		return "", invalidArgument("member id required")
	}
	token, err := e.jwtManager.CreateAccess(memberID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCodeGeneration, err)
	}
	e.metrics.Inc(MetricAccessIssued)
	return token, nil
}

// IssueRefresh describes the issuerefresh operation and its observable behavior.
//
// IssueRefresh stores a new verification string for memberID with TTL JWT.RefreshTTL before
// signing the token that embeds it, which invalidates every refresh token issued earlier for
// the member. A store failure fails with ErrCodeGeneration; no token is returned.
func (e *Engine) IssueRefresh(ctx context.Context, memberID string) (string, error) {
	if memberID == "" {
		return "", invalidArgument("member id required")
	}
	vfs, err := internal.NewVerificationString()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCodeGeneration, err)
	}
	if err := e.refreshStore.Save(ctx, memberID, vfs, e.config.JWT.RefreshTTL); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCodeGeneration, err)
	}
	token, err := e.jwtManager.CreateRefresh(memberID, vfs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCodeGeneration, err)
	}
	e.metrics.Inc(MetricRefreshIssued)
	return token, nil
}

// ValidateAccess reports whether token is an unexpired access token from
// this issuer whose subject is memberID. It makes no store round trip.
func (e *Engine) ValidateAccess(token, memberID string) bool {
	if token == "" || memberID == "" {
		return false
	}
	claims, err := e.jwtManager.ParseAccess(token)
	if err != nil {
		return false
	}
	return claims.Subject == memberID
}

// ValidateRefresh describes the validaterefresh operation and its observable behavior.
//
// ValidateRefresh returns the subject of token when it is an unexpired refresh token from this
// issuer whose verification claim equals the stored record. Every failure, including a store
// error, is the same *ValidationError so callers cannot tell expired, revoked and unknown apart.
func (e *Engine) ValidateRefresh(ctx context.Context, token string) (string, error) {
	rejected := invalidArgument(msgRefreshRejected)

	claims, err := e.jwtManager.ParseRefresh(token)
	if err != nil {
		e.metrics.Inc(MetricRefreshInvalid)
		return "", rejected
	}
	ok, err := e.refreshStore.Matches(ctx, claims.Subject, claims.Verification)
	if err != nil {
		e.logger.Debug(ctx, "refresh record lookup failed", "member_id", claims.Subject, "error", err)
	}
	if err != nil || !ok {
		e.metrics.Inc(MetricRefreshInvalid)
		e.emitEvent(ctx, eventRefreshRejected, false, claims.Subject, rejected, nil)
		return "", rejected
	}

	e.metrics.Inc(MetricRefreshValid)
	return claims.Subject, nil
}

// ExtractSubject returns the subject of a correctly signed token even when
// it has expired.
func (e *Engine) ExtractSubject(token string) (string, error) {
	sub, err := e.jwtManager.Subject(token)
	if err != nil || sub == "" {
		return "", invalidToken("unreadable subject")
	}
	return sub, nil
}

// IssueTokens describes the issuetokens operation and its observable behavior.
//
// IssueTokens resolves the member from memberID or account, verifies code, resets the
// failure counter and refresh record, then issues a fresh access and refresh pair.
func (e *Engine) IssueTokens(ctx context.Context, memberID, account, code string) (TokenPair, error) {
	m, err := e.ResolveIdentity(ctx, memberID, account)
	if err != nil {
		return TokenPair{}, err
	}
	if err := e.verify(ctx, m, code); err != nil {
		return TokenPair{}, err
	}

	e.ResetStatus(ctx, m.ID)

	access, err := e.IssueAccess(m.ID)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := e.IssueRefresh(ctx, m.ID)
	if err != nil {
		return TokenPair{}, err
	}

	e.metrics.Inc(MetricLoginSuccess)
	e.emitEvent(ctx, eventTokensIssued, true, m.ID, nil, nil)

	return TokenPair{AccessToken: access, RefreshToken: refresh, Member: m}, nil
}
