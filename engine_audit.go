package almagestAuth

import (
	"context"
	"errors"

	internalaudit "github.com/almagest-io/almagestAuth/internal/audit"
)

const (
	eventLoginChallenge    = "login_challenge_issued"
	eventLoginFailure      = "login_failure"
	eventLockout           = "lockout"
	eventLoginRefused      = "login_refused"
	eventChallengeVerified = "challenge_verified"
	eventChallengeRejected = "challenge_rejected"
	eventTokensIssued      = "tokens_issued"
	eventAccessRenewed     = "access_renewed"
	eventRefreshRejected   = "refresh_rejected"
	eventDeviceBound       = "device_bound"
	eventDeviceRejected    = "device_rejected"
	eventMemberRegistered  = "member_registered"
	eventPasswordReset     = "password_reset"
	eventPasswordChanged   = "password_changed"
	eventEmailCodeSent     = "email_code_sent"
	eventEmailConfirmed    = "email_confirmed"
	eventEmailChanged      = "email_changed"
	eventLogout            = "logout"
	eventMemberLeft        = "member_left"
	eventRateLimited       = "rate_limited"
)

// EventErrorCode is the coarse error class recorded on failed events.
type EventErrorCode string

const (
	eventErrInvalidArgument EventErrorCode = "invalid_argument"
	eventErrAuthFailure     EventErrorCode = "auth_failure"
	eventErrAccessDenied    EventErrorCode = "access_denied"
	eventErrInvalidToken    EventErrorCode = "invalid_token"
	eventErrCodeGeneration  EventErrorCode = "code_generation"
	eventErrBackend         EventErrorCode = "backend_unavailable"
	eventErrNotification    EventErrorCode = "notification_failed"
	eventErrNotFound        EventErrorCode = "member_not_found"
	eventErrRateLimited     EventErrorCode = "rate_limited"
	eventErrInternal        EventErrorCode = "internal_error"
)

func (e *Engine) emitEvent(
	ctx context.Context,
	eventType string,
	success bool,
	memberID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.events == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := internalaudit.Event{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		MemberID:  memberID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := eventErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.events.Emit(ctx, event)
}

func eventErrorCode(err error) EventErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrAuthFailure):
		return eventErrAuthFailure
	case errors.Is(err, ErrAccessDenied):
		return eventErrAccessDenied
	case errors.Is(err, ErrInvalidToken):
		return eventErrInvalidToken
	case errors.Is(err, ErrMemberNotFound):
		return eventErrNotFound
	case errors.Is(err, ErrInvalidArgument):
		return eventErrInvalidArgument
	case errors.Is(err, ErrCodeGeneration):
		return eventErrCodeGeneration
	case errors.Is(err, ErrSessionBackend):
		return eventErrBackend
	case errors.Is(err, ErrNotification):
		return eventErrNotification
	case errors.Is(err, ErrRateLimited):
		return eventErrRateLimited
	default:
		return eventErrInternal
	}
}
