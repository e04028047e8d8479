package flows

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/almagest-io/almagestAuth/internal/limiters"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureInvalidInput
	LoginFailureUnknownMember
	LoginFailureBanned
	LoginFailureLocked
	LoginFailureCounted
	LoginFailureBackend
	LoginFailureChallenge
)

// LoginMember is the flow-local member view.
type LoginMember struct {
	ID           string
	PasswordHash string
	Banned       bool
}

// LoginResult carries the issued code or failure metadata. Count is set for
// LoginFailureCounted and RetryAfter for LoginFailureLocked.
type LoginResult struct {
	Failure     LoginFailureKind
	Err         error
	MemberID    string
	Code        string
	Count       int
	RetryAfter  time.Duration
	NewlyLocked bool
}

// LoginDeps captures the password step dependencies.
type LoginDeps struct {
	GetMemberByAccount func(context.Context, string) (LoginMember, error)
	MemberNotFound     error

	LockStatus    func(context.Context, string) (limiters.Outcome, bool, error)
	RecordFailure func(context.Context, string) (limiters.Outcome, error)

	VerifyPassword     func(string, string) (bool, error)
	NeedsUpgrade       func(string) (bool, error)
	HashPassword       func(string) (string, error)
	UpdatePasswordHash func(context.Context, string, string) error

	IssueChallenge func(context.Context, string) (string, error)

	Warn func(context.Context, string, ...any)
}

// RunLogin checks the password for account and, on a match, issues a new
// challenge. A mismatch always records a failure; the result is then either
// LoginFailureCounted or LoginFailureLocked.
func RunLogin(ctx context.Context, account, password string, deps LoginDeps) LoginResult {
	if deps.Warn == nil {
		deps.Warn = func(context.Context, string, ...any) {}
	}

	account = strings.TrimSpace(account)
	if account == "" || password == "" {
		return LoginResult{Failure: LoginFailureInvalidInput}
	}

	member, err := deps.GetMemberByAccount(ctx, account)
	if err != nil {
		if deps.MemberNotFound != nil && errors.Is(err, deps.MemberNotFound) {
			return LoginResult{Failure: LoginFailureUnknownMember, Err: err}
		}
		return LoginResult{Failure: LoginFailureBackend, Err: err}
	}
	if member.Banned {
		return LoginResult{Failure: LoginFailureBanned, MemberID: member.ID}
	}

	if res, stop := checkLocked(ctx, member.ID, deps.LockStatus); stop {
		return LoginResult{Failure: res.loginFailure(), Err: res.err, MemberID: member.ID, RetryAfter: res.retryAfter}
	}

	ok, err := deps.VerifyPassword(password, member.PasswordHash)
	if err != nil {
		return LoginResult{Failure: LoginFailureBackend, Err: err, MemberID: member.ID}
	}
	if !ok {
		res := countFailure(ctx, member.ID, deps.RecordFailure)
		return LoginResult{
			Failure:     res.loginFailure(),
			Err:         res.err,
			MemberID:    member.ID,
			Count:       res.count,
			RetryAfter:  res.retryAfter,
			NewlyLocked: res.newlyLocked,
		}
	}

	upgradeHash(ctx, member, password, deps)

	code, err := deps.IssueChallenge(ctx, member.ID)
	if err != nil {
		return LoginResult{Failure: LoginFailureChallenge, Err: err, MemberID: member.ID}
	}

	return LoginResult{MemberID: member.ID, Code: code}
}

func upgradeHash(ctx context.Context, member LoginMember, password string, deps LoginDeps) {
	if deps.NeedsUpgrade == nil || deps.HashPassword == nil || deps.UpdatePasswordHash == nil {
		return
	}
	needs, err := deps.NeedsUpgrade(member.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := deps.HashPassword(password)
	if err != nil {
		deps.Warn(ctx, "password rehash failed", "member_id", member.ID, "error", err)
		return
	}
	if err := deps.UpdatePasswordHash(ctx, member.ID, hash); err != nil {
		deps.Warn(ctx, "password rehash store failed", "member_id", member.ID, "error", err)
	}
}
