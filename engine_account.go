package almagestAuth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/almagest-io/almagestAuth/internal"
	"github.com/almagest-io/almagestAuth/internal/notify"
	"github.com/almagest-io/almagestAuth/internal/rate"
)

var emailPattern = regexp.MustCompile(`^[\w.-]+@([\w-]+\.)+[\w-]{2,4}$`)

const maxPasswordBytes = 72

// Column widths of the member table.
const (
	minAccountLen = 8
	maxAccountLen = 20
	minNameLen    = 2
	maxNameLen    = 100
	maxEmailLen   = 50
	maxTelLen     = 30
	birthDateLen  = 8
	maxGenderLen  = 10
	maxCountryLen = 50
)

const (
	msgAccountInUse    = "account in use"
	msgEmailInUse      = "email in use"
	msgEmailInvalid    = "invalid email"
	msgUnknownEmail    = "unknown email"
	msgAccountMismatch = "account and email do not match"
	msgNoAppVersion    = "no app version published"
)

// ValidEmail reports whether email has the accepted address shape.
func ValidEmail(email string) bool {
	return len(email) <= maxEmailLen && emailPattern.MatchString(email)
}

func checkLength(field, value string, min, max int) error {
	n := utf8.RuneCountInString(value)
	if n >= min && n <= max {
		return nil
	}
	if min == max {
		return invalidArgument(fmt.Sprintf("%s must be %d characters", field, min))
	}
	return invalidArgument(fmt.Sprintf("%s must be %d-%d characters", field, min, max))
}

// checkOptional applies checkLength to value unless it is empty.
func checkOptional(field, value string, min, max int) error {
	if value == "" {
		return nil
	}
	return checkLength(field, value, min, max)
}

func checkProfile(p Profile) error {
	if p.Name == "" {
		return invalidArgument("name required")
	}
	for _, err := range []error{
		checkLength("name", p.Name, minNameLen, maxNameLen),
		checkOptional("birthDate", p.BirthDate, birthDateLen, birthDateLen),
		checkOptional("gender", p.Gender, 1, maxGenderLen),
		checkOptional("country", p.Country, 1, maxCountryLen),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

// Register describes the register operation and its observable behavior.
//
// Register creates a disabled member with a new uuid, bcrypt password hash and RoleUser.
// Account and email must be unused. The member is enabled once its email is confirmed.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (Member, error) {
	m := Member{
		ID:        uuid.NewString(),
		Account:   strings.TrimSpace(req.Account),
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.TrimSpace(req.Email),
		Tel:       strings.TrimSpace(req.Tel),
		BirthDate: strings.TrimSpace(req.BirthDate),
		Gender:    strings.TrimSpace(req.Gender),
		Country:   strings.TrimSpace(req.Country),
		Role:      RoleUser,
	}

	if m.Account == "" {
		return Member{}, invalidArgument("account required")
	}
	if err := checkLength("account", m.Account, minAccountLen, maxAccountLen); err != nil {
		return Member{}, err
	}
	if err := checkProfile(Profile{Name: m.Name, Country: m.Country, Gender: m.Gender, BirthDate: m.BirthDate}); err != nil {
		return Member{}, err
	}
	if !ValidEmail(m.Email) {
		return Member{}, invalidArgument(msgEmailInvalid)
	}
	if err := checkOptional("tel", m.Tel, 1, maxTelLen); err != nil {
		return Member{}, err
	}
	if err := e.checkNewPassword(req.Password); err != nil {
		return Member{}, err
	}

	if err := e.LookAccount(ctx, m.Account); err != nil {
		return Member{}, err
	}
	if err := e.LookEmail(ctx, m.Email); err != nil {
		return Member{}, err
	}

	hash, err := e.passwordHash.Hash(req.Password)
	if err != nil {
		return Member{}, fmt.Errorf("%w: %v", ErrCodeGeneration, err)
	}
	m.PasswordHash = hash

	now := e.now()
	m.CreatedAt = now
	m.LastUpdate = now
	if err := e.members.CreateMember(ctx, m); err != nil {
		return Member{}, backendError(err)
	}

	e.metrics.Inc(MetricMemberRegistered)
	e.emitEvent(ctx, eventMemberRegistered, true, m.ID, nil, nil)
	return m, nil
}

// LookAccount returns nil when account is non-blank and not yet taken.
func (e *Engine) LookAccount(ctx context.Context, account string) error {
	account = strings.TrimSpace(account)
	if account == "" {
		return invalidArgument("account required")
	}
	taken, err := e.members.AccountExists(ctx, account)
	if err != nil {
		return backendError(err)
	}
	if taken {
		return invalidArgument(msgAccountInUse)
	}
	return nil
}

// LookEmail returns nil when email is well formed and not yet taken.
func (e *Engine) LookEmail(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if !ValidEmail(email) {
		return invalidArgument(msgEmailInvalid)
	}
	taken, err := e.members.EmailExists(ctx, email)
	if err != nil {
		return backendError(err)
	}
	if taken {
		return invalidArgument(msgEmailInUse)
	}
	return nil
}

// FindAccount returns the account name registered with email.
func (e *Engine) FindAccount(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", invalidArgument("email required")
	}
	m, err := e.members.GetMemberByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			return "", invalidArgument(msgUnknownEmail)
		}
		return "", backendError(err)
	}
	return m.Account, nil
}

// ResetPassword describes the resetpassword operation and its observable behavior.
//
// ResetPassword mails a temporary password to the member matching both account and email,
// then stores its hash and disables the member until the password is changed. Requests are
// throttled per account. A mail failure returns ErrNotification and leaves the member untouched.
func (e *Engine) ResetPassword(ctx context.Context, account, email string) error {
	account = strings.TrimSpace(account)
	email = strings.TrimSpace(email)
	if account == "" || email == "" {
		return invalidArgument("account and email required")
	}
	if err := e.throttleErr(ctx, "", e.throttle.CheckReset(ctx, account)); err != nil {
		return err
	}

	m, err := e.members.GetMemberByAccount(ctx, account)
	if err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			return invalidArgument(msgAccountMismatch)
		}
		return backendError(err)
	}
	if !strings.EqualFold(m.Email, email) {
		return invalidArgument(msgAccountMismatch)
	}

	return e.issueTemporaryPassword(ctx, m)
}

// InitializePassword issues a temporary password to an authenticated member
// the same way ResetPassword does, without the account and email check.
func (e *Engine) InitializePassword(ctx context.Context, memberID string) error {
	m, err := e.memberByID(ctx, memberID)
	if err != nil {
		return err
	}
	return e.issueTemporaryPassword(ctx, m)
}

func (e *Engine) issueTemporaryPassword(ctx context.Context, m Member) error {
	temp := e.config.OTP.TestTemporaryPassword
	if !e.isTestAccount(m) {
		var err error
		temp, err = internal.NewTemporaryPassword()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCodeGeneration, err)
		}
	}
	hash, err := e.passwordHash.Hash(temp)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCodeGeneration, err)
	}

	if err := e.sendMail(ctx, notify.TemporaryPasswordMail(m.Email, temp)); err != nil {
		e.emitEvent(ctx, eventPasswordReset, false, m.ID, err, nil)
		return err
	}

	if err := e.members.UpdatePassword(ctx, m.ID, hash, false); err != nil {
		return backendError(err)
	}

	e.metrics.Inc(MetricPasswordReset)
	e.emitEvent(ctx, eventPasswordReset, true, m.ID, nil, nil)
	return nil
}

// ChangePassword describes the changepassword operation and its observable behavior.
//
// ChangePassword replaces the member's password once the current password matches and both
// new entries agree. The member is enabled afterwards, which ends a temporary-password state.
func (e *Engine) ChangePassword(ctx context.Context, memberID string, req ChangePasswordRequest) error {
	if req.CurrentPassword == "" || req.NewPassword1 == "" || req.NewPassword2 == "" {
		return invalidArgument("all password fields required")
	}
	if req.NewPassword1 != req.NewPassword2 {
		return invalidArgument("new passwords do not match")
	}
	if err := e.checkNewPassword(req.NewPassword1); err != nil {
		return err
	}

	m, err := e.memberByID(ctx, memberID)
	if err != nil {
		return err
	}
	ok, err := e.passwordHash.Verify(req.CurrentPassword, m.PasswordHash)
	if err != nil {
		return backendError(err)
	}
	if !ok {
		return invalidArgument("current password mismatch")
	}

	hash, err := e.passwordHash.Hash(req.NewPassword1)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCodeGeneration, err)
	}
	if err := e.members.UpdatePassword(ctx, m.ID, hash, true); err != nil {
		return backendError(err)
	}

	e.metrics.Inc(MetricPasswordChanged)
	e.emitEvent(ctx, eventPasswordChanged, true, m.ID, nil, nil)
	return nil
}

func (e *Engine) checkNewPassword(pw string) error {
	if len(pw) < e.config.Password.MinLength {
		return invalidArgument(fmt.Sprintf("password must be at least %d characters", e.config.Password.MinLength))
	}
	if len(pw) > maxPasswordBytes {
		return invalidArgument("password too long")
	}
	return nil
}

// SendEmailCode describes the sendemailcode operation and its observable behavior.
//
// SendEmailCode issues a challenge for memberID and mails its code to the member's address.
// The challenge shares the login slot, so a pending login code is replaced. Sends are
// throttled per member.
func (e *Engine) SendEmailCode(ctx context.Context, memberID string) error {
	m, err := e.memberByID(ctx, memberID)
	if err != nil {
		return err
	}
	return e.mailCode(ctx, m, m.Email, false)
}

// ConfirmEmail verifies code and enables the member.
func (e *Engine) ConfirmEmail(ctx context.Context, memberID, code string) error {
	m, err := e.memberByID(ctx, memberID)
	if err != nil {
		return err
	}
	if err := e.verify(ctx, m, code); err != nil {
		return err
	}
	if err := e.members.SetEnabled(ctx, m.ID, true); err != nil {
		return backendError(err)
	}
	e.emitEvent(ctx, eventEmailConfirmed, true, m.ID, nil, nil)
	return nil
}

// RequestEmailChange mails a code to the member's current address to start
// an email change.
func (e *Engine) RequestEmailChange(ctx context.Context, memberID string) error {
	return e.SendEmailCode(ctx, memberID)
}

// VerifyEmailChangeCode describes the verifyemailchangecode operation and its observable behavior.
//
// VerifyEmailChangeCode consumes the code sent to the current address and mails a new code
// to newEmail, proving the member controls it.
func (e *Engine) VerifyEmailChangeCode(ctx context.Context, memberID, code, newEmail string) error {
	newEmail = strings.TrimSpace(newEmail)
	if err := e.LookEmail(ctx, newEmail); err != nil {
		return err
	}
	m, err := e.memberByID(ctx, memberID)
	if err != nil {
		return err
	}
	if err := e.verify(ctx, m, code); err != nil {
		return err
	}
	return e.mailCode(ctx, m, newEmail, true)
}

// ConfirmEmailChange verifies the code mailed to newEmail and stores it as
// the member's address.
func (e *Engine) ConfirmEmailChange(ctx context.Context, memberID, code, newEmail string) error {
	newEmail = strings.TrimSpace(newEmail)
	if err := e.LookEmail(ctx, newEmail); err != nil {
		return err
	}
	m, err := e.memberByID(ctx, memberID)
	if err != nil {
		return err
	}
	if err := e.verify(ctx, m, code); err != nil {
		return err
	}
	if err := e.members.UpdateEmail(ctx, m.ID, newEmail); err != nil {
		return backendError(err)
	}
	e.emitEvent(ctx, eventEmailChanged, true, m.ID, nil, nil)
	return nil
}

func (e *Engine) mailCode(ctx context.Context, m Member, to string, changing bool) error {
	if err := e.throttleErr(ctx, m.ID, e.throttle.CheckEmailCode(ctx, m.ID)); err != nil {
		return err
	}
	ch, err := e.issueChallenge(ctx, m)
	if err != nil {
		return backendError(err)
	}
	if err := e.sendMail(ctx, notify.EmailCodeMail(to, ch.Code, changing)); err != nil {
		e.emitEvent(ctx, eventEmailCodeSent, false, m.ID, err, nil)
		return err
	}
	e.emitEvent(ctx, eventEmailCodeSent, true, m.ID, nil, func() map[string]string {
		if changing {
			return map[string]string{"purpose": "change"}
		}
		return map[string]string{"purpose": "confirm"}
	})
	return nil
}

// sendMail delivers synchronously; the caller's outcome depends on it.
func (e *Engine) sendMail(ctx context.Context, msg notify.Mail) error {
	ctx, cancel := context.WithTimeout(ctx, e.config.Notification.SendTimeout)
	defer cancel()
	if err := e.mail.SendMail(ctx, msg); err != nil {
		e.metrics.Inc(MetricNotificationFailed)
		e.logger.Error(ctx, "mail delivery failed", "subject", msg.Subject, "error", err)
		return fmt.Errorf("%w: %v", ErrNotification, err)
	}
	e.metrics.Inc(MetricNotificationSent)
	return nil
}

func (e *Engine) throttleErr(ctx context.Context, memberID string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		e.metrics.Inc(MetricRateLimited)
		err = fmt.Errorf("%w: %v", ErrRateLimited, err)
		e.emitEvent(ctx, eventRateLimited, false, memberID, err, nil)
		return err
	default:
		return fmt.Errorf("%w: %v", ErrSessionBackend, err)
	}
}

// UpdateProfile replaces the member-editable profile fields.
func (e *Engine) UpdateProfile(ctx context.Context, memberID string, p Profile) error {
	p = Profile{
		Name:      strings.TrimSpace(p.Name),
		Country:   strings.TrimSpace(p.Country),
		Gender:    strings.TrimSpace(p.Gender),
		BirthDate: strings.TrimSpace(p.BirthDate),
	}
	if err := checkProfile(p); err != nil {
		return err
	}
	if _, err := e.memberByID(ctx, memberID); err != nil {
		return err
	}
	if err := e.members.UpdateProfile(ctx, memberID, p); err != nil {
		return backendError(err)
	}
	return nil
}

// MemberInfo returns the member record for memberID.
func (e *Engine) MemberInfo(ctx context.Context, memberID string) (Member, error) {
	return e.memberByID(ctx, memberID)
}

// Leave describes the leave operation and its observable behavior.
//
// Leave deactivates the member: it is disabled and banned, its device token is cleared and
// its failure counter and refresh record are removed.
func (e *Engine) Leave(ctx context.Context, memberID string) error {
	m, err := e.memberByID(ctx, memberID)
	if err != nil {
		return err
	}
	if err := e.members.Deactivate(ctx, m.ID); err != nil {
		return backendError(err)
	}
	e.ResetStatus(ctx, m.ID)

	e.metrics.Inc(MetricMemberLeft)
	e.emitEvent(ctx, eventMemberLeft, true, m.ID, nil, nil)
	return nil
}

// AppVersion returns the latest published mobile app version code.
func (e *Engine) AppVersion(ctx context.Context) (string, error) {
	if e.appVersions == nil {
		return "", invalidArgument(msgNoAppVersion)
	}
	v, err := e.appVersions.LatestAppVersion(ctx)
	if err != nil {
		return "", backendError(err)
	}
	if v == "" {
		return "", invalidArgument(msgNoAppVersion)
	}
	return v, nil
}
