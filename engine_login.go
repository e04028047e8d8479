package almagestAuth

import (
	"context"
	"strings"

	"github.com/almagest-io/almagestAuth/internal/notify"
)

const (
	msgNoDevice            = "no registered device"
	msgDeviceTokenRequired = "device token required"
	msgOneAccountPerDevice = "one account per device"
	unboundDeviceMember    = "0"
)

// Login describes the login operation and its observable behavior.
//
// Login runs the first login step: the password is checked, a challenge is issued and its
// code is pushed to the member's device through the delayed dispatcher. App logins bind
// the presented device token to the member first; a device already bound to another
// member is refused with *AccessDeniedError. Login returns before the push is delivered.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	deviceToken := strings.TrimSpace(req.DeviceToken)
	if req.Client == ClientApp && deviceToken == "" {
		return LoginResult{}, invalidArgument(msgDeviceTokenRequired)
	}

	m, code, err := e.Authenticate(ctx, req.Account, req.Password)
	if err != nil {
		return LoginResult{}, err
	}

	switch req.Client {
	case ClientApp:
		bound := strings.TrimSpace(req.DeviceMemberID)
		if bound != m.ID && bound != unboundDeviceMember {
			err := &AccessDeniedError{Reason: msgOneAccountPerDevice}
			e.emitEvent(ctx, eventDeviceRejected, false, m.ID, err, func() map[string]string {
				return map[string]string{"bound_member_id": bound}
			})
			return LoginResult{}, err
		}
		if deviceToken != m.DeviceToken {
			if err := e.members.UpdateDeviceToken(ctx, m.ID, deviceToken); err != nil {
				return LoginResult{}, backendError(err)
			}
			e.emitEvent(ctx, eventDeviceBound, true, m.ID, nil, nil)
		}
	default:
		deviceToken = m.DeviceToken
		if deviceToken == "" {
			return LoginResult{}, invalidArgument(msgNoDevice)
		}
	}

	if err := e.notifier.SubmitPush(e.push, notify.OTPPush(deviceToken, code)); err != nil {
		e.logger.Warn(ctx, "otp push not queued", "member_id", m.ID, "error", err)
	}

	return LoginResult{MemberID: m.ID}, nil
}

// SaveDeviceToken stores the push token reported by a device for memberID.
func (e *Engine) SaveDeviceToken(ctx context.Context, memberID, token string) error {
	memberID = strings.TrimSpace(memberID)
	token = strings.TrimSpace(token)
	if memberID == "" || token == "" {
		return invalidArgument("member id and token required")
	}
	if _, err := e.memberByID(ctx, memberID); err != nil {
		return err
	}
	if err := e.members.UpdateDeviceToken(ctx, memberID, token); err != nil {
		return backendError(err)
	}
	e.emitEvent(ctx, eventDeviceBound, true, memberID, nil, nil)
	return nil
}
