package flows

import (
	"context"
	"time"

	"github.com/almagest-io/almagestAuth/internal/limiters"
)

type lockKind int

const (
	lockNone lockKind = iota
	lockLocked
	lockCounted
	lockBackend
)

type lockResult struct {
	kind       lockKind
	err        error
	count      int
	retryAfter time.Duration
	// newlyLocked is set when this failure produced the lock.
	newlyLocked bool
}

// checkLocked reports whether the attempt for id must be refused before any
// credential comparison, either because id is locked or the counter is
// unreadable.
func checkLocked(ctx context.Context, id string, status func(context.Context, string) (limiters.Outcome, bool, error)) (lockResult, bool) {
	if status == nil {
		return lockResult{}, false
	}
	out, found, err := status(ctx, id)
	if err != nil {
		return lockResult{kind: lockBackend, err: err}, true
	}
	if found && out.Locked() {
		return lockResult{kind: lockLocked, retryAfter: out.RetryAfter}, true
	}
	return lockResult{}, false
}

func countFailure(ctx context.Context, id string, record func(context.Context, string) (limiters.Outcome, error)) lockResult {
	out, err := record(ctx, id)
	if err != nil {
		return lockResult{kind: lockBackend, err: err}
	}
	if out.Locked() {
		return lockResult{kind: lockLocked, retryAfter: out.RetryAfter, newlyLocked: true}
	}
	return lockResult{kind: lockCounted, count: out.Count}
}

func (r lockResult) loginFailure() LoginFailureKind {
	switch r.kind {
	case lockLocked:
		return LoginFailureLocked
	case lockCounted:
		return LoginFailureCounted
	case lockBackend:
		return LoginFailureBackend
	default:
		return LoginFailureNone
	}
}

func (r lockResult) verifyFailure() VerifyFailureKind {
	switch r.kind {
	case lockLocked:
		return VerifyFailureLocked
	case lockCounted:
		return VerifyFailureCounted
	case lockBackend:
		return VerifyFailureBackend
	default:
		return VerifyFailureNone
	}
}
