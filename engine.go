package almagestAuth

import (
	"context"
	"errors"
	"fmt"
	"time"

	internalaudit "github.com/almagest-io/almagestAuth/internal/audit"
	"github.com/almagest-io/almagestAuth/internal/flows"
	"github.com/almagest-io/almagestAuth/internal/limiters"
	"github.com/almagest-io/almagestAuth/internal/logging"
	"github.com/almagest-io/almagestAuth/internal/notify"
	"github.com/almagest-io/almagestAuth/internal/rate"
	"github.com/almagest-io/almagestAuth/internal/stores"
	"github.com/almagest-io/almagestAuth/jwt"
	"github.com/almagest-io/almagestAuth/password"
)

// Engine defines a public type used by almagestAuth APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config       Config
	members      MemberProvider
	challenges   ChallengeStore
	appVersions  AppVersionProvider
	push         PushSender
	mail         MailSender
	lockout      *limiters.LockoutLimiter
	refreshStore *stores.RefreshStore
	throttle     *rate.Limiter
	jwtManager   *jwt.Manager
	passwordHash *password.Bcrypt
	notifier     *notify.Dispatcher
	events       *internalaudit.Dispatcher
	metrics      *Metrics
	logger       logging.Logger
	flows        flows.Deps
	now          func() time.Time
}

// Close describes the close operation and its observable behavior.
//
// Close flushes pending pushes and queued auth events, then closes the event sink.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.notifier != nil {
		e.notifier.Close()
	}
	if e.events != nil {
		if err := e.events.Close(); err != nil {
			e.logger.Warn(context.Background(), "event sink close failed", "error", err)
		}
	}
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// EventsDropped reports auth events dropped because the buffer was full.
func (e *Engine) EventsDropped() uint64 {
	if e == nil || e.events == nil {
		return 0
	}
	return e.events.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// RecordFailure counts one authentication failure for memberID. It never
// returns nil: the result is an *AuthFailureError with the new count, an
// *AccessDeniedError once the identity is locked, or ErrSessionBackend.
func (e *Engine) RecordFailure(ctx context.Context, memberID string) error {
	out, err := e.lockout.RecordFailure(ctx, memberID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSessionBackend, err)
	}
	if out.Locked() {
		return e.lockedError(ctx, memberID, out.RetryAfter, true)
	}
	return e.countedError(ctx, memberID, out.Count)
}

// ResetStatus deletes the failure counter and the refresh verification
// record for memberID. Store errors are logged, never returned.
func (e *Engine) ResetStatus(ctx context.Context, memberID string) {
	if memberID == "" {
		return
	}
	if err := e.lockout.Reset(ctx, memberID); err != nil {
		e.logger.Warn(ctx, "reset failure counter failed", "member_id", memberID, "error", err)
	}
	if err := e.refreshStore.Delete(ctx, memberID); err != nil {
		e.logger.Warn(ctx, "reset refresh record failed", "member_id", memberID, "error", err)
	}
}

func (e *Engine) countedError(ctx context.Context, memberID string, count int) error {
	err := &AuthFailureError{Count: count}
	e.metrics.Inc(MetricAuthFailure)
	e.emitEvent(ctx, eventLoginFailure, false, memberID, err, func() map[string]string {
		return map[string]string{"count": fmt.Sprint(count)}
	})
	return err
}

// lockedError builds the refusal for a locked member. newlyLocked marks the
// failure that produced the lock; later attempts count as rejections.
func (e *Engine) lockedError(ctx context.Context, memberID string, retryAfter time.Duration, newlyLocked bool) error {
	if retryAfter <= 0 {
		retryAfter = e.config.Lockout.Window
	}
	err := &AccessDeniedError{Reason: msgLocked, RetryAfter: retryAfter}
	if !newlyLocked {
		e.metrics.Inc(MetricLockedRejected)
		e.emitEvent(ctx, eventLoginRefused, false, memberID, err, nil)
		return err
	}
	e.metrics.Inc(MetricLockout)
	e.logger.Warn(ctx, "member locked", "member_id", memberID, "retry_after", retryAfter)
	e.emitEvent(ctx, eventLockout, false, memberID, err, nil)
	return err
}

func (e *Engine) lockStatus(ctx context.Context, memberID string) (limiters.Outcome, bool, error) {
	return e.lockout.Status(ctx, memberID)
}

func (e *Engine) getChallenge(ctx context.Context, memberID string) (*flows.Challenge, error) {
	ch, err := e.challenges.GetChallenge(ctx, memberID)
	if err != nil || ch == nil {
		return nil, err
	}
	return &flows.Challenge{Code: ch.Code, ExpireAt: ch.ExpireAt, Used: ch.Used}, nil
}

func (e *Engine) buildFlowDeps() flows.Deps {
	return flows.Deps{
		Login: flows.LoginDeps{
			GetMemberByAccount: func(ctx context.Context, account string) (flows.LoginMember, error) {
				m, err := e.members.GetMemberByAccount(ctx, account)
				if err != nil {
					return flows.LoginMember{}, err
				}
				return flows.LoginMember{ID: m.ID, PasswordHash: m.PasswordHash, Banned: m.Banned}, nil
			},
			MemberNotFound: ErrMemberNotFound,
			LockStatus:     e.lockStatus,
			RecordFailure:  e.lockout.RecordFailure,
			VerifyPassword: e.passwordHash.Verify,
			NeedsUpgrade:   e.needsUpgrade,
			HashPassword:   e.passwordHash.Hash,
			UpdatePasswordHash: func(ctx context.Context, id, hash string) error {
				m, err := e.members.GetMemberByID(ctx, id)
				if err != nil {
					return err
				}
				return e.members.UpdatePassword(ctx, id, hash, m.Enabled)
			},
			IssueChallenge: func(ctx context.Context, id string) (string, error) {
				ch, err := e.IssueChallenge(ctx, id)
				if err != nil {
					return "", err
				}
				return ch.Code, nil
			},
			Warn: e.logger.Warn,
		},
		Verify: flows.VerifyDeps{
			Now:           e.now,
			LockStatus:    e.lockStatus,
			RecordFailure: e.lockout.RecordFailure,
			GetChallenge:  e.getChallenge,
			MarkUsed:      e.challenges.MarkChallengeUsed,
		},
		Authenticate: flows.AuthenticateDeps{
			Subject:        e.jwtManager.Subject,
			MemberNotFound: ErrMemberNotFound,
			ValidateAccess: e.ValidateAccess,
			ValidateRefresh: func(ctx context.Context, token string) (string, error) {
				return e.ValidateRefresh(ctx, token)
			},
			IssueAccess: e.IssueAccess,
			ObserveLatency: func(d time.Duration) {
				e.metrics.Observe(MetricAuthenticateLatency, d)
			},
			Now: e.now,
		},
	}
}

func (e *Engine) needsUpgrade(hash string) (bool, error) {
	if !e.config.Password.UpgradeOnLogin {
		return false, nil
	}
	return e.passwordHash.NeedsUpgrade(hash)
}

func (e *Engine) isTestAccount(m Member) bool {
	return e.config.OTP.TestAccount != "" && m.Account == e.config.OTP.TestAccount
}

// memberByID maps ErrMemberNotFound to a validation error.
func (e *Engine) memberByID(ctx context.Context, id string) (Member, error) {
	if id == "" {
		return Member{}, invalidArgument("member id required")
	}
	m, err := e.members.GetMemberByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			return Member{}, &ValidationError{Msg: "unknown member"}
		}
		return Member{}, err
	}
	return m, nil
}
