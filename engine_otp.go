package almagestAuth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/almagest-io/almagestAuth/internal"
	"github.com/almagest-io/almagestAuth/internal/flows"
)

// IssueChallenge describes the issuechallenge operation and its observable behavior.
//
// IssueChallenge creates or overwrites the single challenge for memberID with a fresh code,
// Used=false and ExpireAt=now+OTP.TTL. The test account always receives OTP.TestCode.
// A concurrent issue for the same member is last-writer-wins.
func (e *Engine) IssueChallenge(ctx context.Context, memberID string) (OTPChallenge, error) {
	m, err := e.memberByID(ctx, memberID)
	if err != nil {
		return OTPChallenge{}, err
	}
	return e.issueChallenge(ctx, m)
}

func (e *Engine) issueChallenge(ctx context.Context, m Member) (OTPChallenge, error) {
	code := e.config.OTP.TestCode
	if !e.isTestAccount(m) {
		var err error
		code, err = internal.NewOTPCode()
		if err != nil {
			return OTPChallenge{}, fmt.Errorf("%w: %v", ErrCodeGeneration, err)
		}
	}

	now := e.now()
	ch := OTPChallenge{
		MemberID:  m.ID,
		Code:      code,
		CreatedAt: now,
		ExpireAt:  now.Add(e.config.OTP.TTL),
	}
	if err := e.challenges.SaveChallenge(ctx, ch); err != nil {
		return OTPChallenge{}, err
	}

	e.metrics.Inc(MetricChallengeIssued)
	return ch, nil
}

// Authenticate describes the authenticate operation and its observable behavior.
//
// Authenticate checks password for account. A mismatch records a lockout failure and returns
// *AuthFailureError or *AccessDeniedError; a locked or banned member gets *AccessDeniedError
// without a password check. On a match a challenge is issued and its code returned; the code
// must only be handed to a notification channel.
func (e *Engine) Authenticate(ctx context.Context, account, password string) (Member, string, error) {
	e.metrics.Inc(MetricLoginAttempt)

	var member Member
	deps := e.flows.Login
	deps.GetMemberByAccount = func(ctx context.Context, account string) (flows.LoginMember, error) {
		m, err := e.members.GetMemberByAccount(ctx, account)
		if err != nil {
			return flows.LoginMember{}, err
		}
		member = m
		return flows.LoginMember{ID: m.ID, PasswordHash: m.PasswordHash, Banned: m.Banned}, nil
	}
	deps.IssueChallenge = func(ctx context.Context, _ string) (string, error) {
		ch, err := e.issueChallenge(ctx, member)
		if err != nil {
			return "", err
		}
		return ch.Code, nil
	}

	res := flows.RunLogin(ctx, account, password, deps)
	switch res.Failure {
	case flows.LoginFailureNone:
		e.emitEvent(ctx, eventLoginChallenge, true, res.MemberID, nil, nil)
		return member, res.Code, nil
	case flows.LoginFailureInvalidInput:
		return Member{}, "", invalidArgument("account and password required")
	case flows.LoginFailureUnknownMember:
		return Member{}, "", invalidArgument("unknown account")
	case flows.LoginFailureBanned:
		e.metrics.Inc(MetricBannedRejected)
		err := &AccessDeniedError{Reason: msgBanned}
		e.emitEvent(ctx, eventLoginRefused, false, res.MemberID, err, nil)
		return Member{}, "", err
	case flows.LoginFailureLocked:
		return Member{}, "", e.lockedError(ctx, res.MemberID, res.RetryAfter, res.NewlyLocked)
	case flows.LoginFailureCounted:
		return Member{}, "", e.countedError(ctx, res.MemberID, res.Count)
	default:
		return Member{}, "", backendError(res.Err)
	}
}

// Verify describes the verify operation and its observable behavior.
//
// Verify consumes the challenge for memberID when code matches. Missing, expired and used
// challenges fail with *ValidationError; a wrong code records a lockout failure. The test
// account skips the expiry and used checks, and its wrong codes are never counted.
func (e *Engine) Verify(ctx context.Context, memberID, code string) error {
	m, err := e.memberByID(ctx, memberID)
	if err != nil {
		return err
	}
	return e.verify(ctx, m, code)
}

func (e *Engine) verify(ctx context.Context, m Member, code string) error {
	deps := e.flows.Verify
	deps.IsTestIdentity = func(string) bool { return e.isTestAccount(m) }

	res := flows.RunVerifyChallenge(ctx, m.ID, strings.TrimSpace(code), deps)
	if res.Failure == flows.VerifyFailureNone {
		e.metrics.Inc(MetricChallengeVerified)
		e.emitEvent(ctx, eventChallengeVerified, true, m.ID, nil, nil)
		return nil
	}

	e.metrics.Inc(MetricChallengeRejected)
	var err error
	switch res.Failure {
	case flows.VerifyFailureInvalidInput:
		err = invalidArgument("code required")
	case flows.VerifyFailureNoChallenge:
		err = invalidArgument(msgNoChallenge)
	case flows.VerifyFailureExpired:
		err = invalidArgument(msgExpired)
	case flows.VerifyFailureAlreadyUsed:
		err = invalidArgument(msgAlreadyUsed)
	case flows.VerifyFailureMismatch:
		err = invalidArgument(msgCodeMismatch)
	case flows.VerifyFailureLocked:
		return e.lockedError(ctx, m.ID, res.RetryAfter, res.NewlyLocked)
	case flows.VerifyFailureCounted:
		return e.countedError(ctx, m.ID, res.Count)
	default:
		err = backendError(res.Err)
	}
	e.emitEvent(ctx, eventChallengeRejected, false, m.ID, err, nil)
	return err
}

// ResolveIdentity finds the member named by an explicit id, or failing
// that by account name. Neither given is a validation error.
func (e *Engine) ResolveIdentity(ctx context.Context, memberID, account string) (Member, error) {
	memberID = strings.TrimSpace(memberID)
	account = strings.TrimSpace(account)

	switch {
	case memberID != "":
		return e.memberByID(ctx, memberID)
	case account != "":
		m, err := e.members.GetMemberByAccount(ctx, account)
		if err != nil {
			if errors.Is(err, ErrMemberNotFound) {
				return Member{}, invalidArgument("unknown account")
			}
			return Member{}, err
		}
		return m, nil
	default:
		return Member{}, invalidArgument(msgIdentityRequired)
	}
}

// backendError keeps already classified errors and otherwise marks err as
// a shared store failure.
func backendError(err error) error {
	if err == nil {
		return ErrSessionBackend
	}
	for _, known := range []error{ErrSessionBackend, ErrCodeGeneration, ErrInvalidArgument, ErrMemberNotFound} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrSessionBackend, err)
}
