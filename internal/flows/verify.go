package flows

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/almagest-io/almagestAuth/internal/limiters"
)

// VerifyFailureKind classifies challenge verification failures.
type VerifyFailureKind int

const (
	VerifyFailureNone VerifyFailureKind = iota
	VerifyFailureInvalidInput
	VerifyFailureNoChallenge
	VerifyFailureExpired
	VerifyFailureAlreadyUsed
	VerifyFailureLocked
	VerifyFailureCounted
	VerifyFailureBackend
	// VerifyFailureMismatch is a wrong code that is not counted.
	VerifyFailureMismatch
)

// Challenge is the flow-local view of a stored challenge.
type Challenge struct {
	Code     string
	ExpireAt time.Time
	Used     bool
}

// VerifyResult carries failure metadata; a zero Failure means the challenge
// was consumed.
type VerifyResult struct {
	Failure     VerifyFailureKind
	Err         error
	Count       int
	RetryAfter  time.Duration
	NewlyLocked bool
}

// VerifyDeps captures challenge verification dependencies.
type VerifyDeps struct {
	Now            func() time.Time
	IsTestIdentity func(string) bool

	LockStatus    func(context.Context, string) (limiters.Outcome, bool, error)
	RecordFailure func(context.Context, string) (limiters.Outcome, error)

	GetChallenge func(context.Context, string) (*Challenge, error)
	MarkUsed     func(context.Context, string) error
}

// RunVerifyChallenge consumes the challenge for memberID if code matches.
//
// The test identity is checked on code equality only and a wrong code is a
// plain mismatch. For everyone else an expired or used challenge is a
// validation failure regardless of the code, and a wrong code records a
// lockout failure.
func RunVerifyChallenge(ctx context.Context, memberID, code string, deps VerifyDeps) VerifyResult {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.IsTestIdentity == nil {
		deps.IsTestIdentity = func(string) bool { return false }
	}
	if memberID == "" || code == "" {
		return VerifyResult{Failure: VerifyFailureInvalidInput}
	}

	if res, stop := checkLocked(ctx, memberID, deps.LockStatus); stop {
		return VerifyResult{Failure: res.verifyFailure(), Err: res.err, RetryAfter: res.retryAfter}
	}

	ch, err := deps.GetChallenge(ctx, memberID)
	if err != nil {
		return VerifyResult{Failure: VerifyFailureBackend, Err: err}
	}
	if ch == nil {
		return VerifyResult{Failure: VerifyFailureNoChallenge}
	}

	testIdentity := deps.IsTestIdentity(memberID)
	if !testIdentity {
		if !deps.Now().Before(ch.ExpireAt) {
			return VerifyResult{Failure: VerifyFailureExpired}
		}
		if ch.Used {
			return VerifyResult{Failure: VerifyFailureAlreadyUsed}
		}
	}

	if subtle.ConstantTimeCompare([]byte(ch.Code), []byte(code)) != 1 {
		if testIdentity {
			return VerifyResult{Failure: VerifyFailureMismatch}
		}
		res := countFailure(ctx, memberID, deps.RecordFailure)
		return VerifyResult{
			Failure:     res.verifyFailure(),
			Err:         res.err,
			Count:       res.count,
			RetryAfter:  res.retryAfter,
			NewlyLocked: res.newlyLocked,
		}
	}

	if err := deps.MarkUsed(ctx, memberID); err != nil {
		return VerifyResult{Failure: VerifyFailureBackend, Err: err}
	}
	return VerifyResult{}
}
