package almagestAuth

import (
	"context"
	"time"

	internalaudit "github.com/almagest-io/almagestAuth/internal/audit"
	"github.com/almagest-io/almagestAuth/internal/notify"
)

// RoleUser is the role assigned to every registered member.
const RoleUser = "ROLE_USER"

// Member is the identity record owned by the member store.
//
// Enabled tracks email confirmation; a temporary password disables the
// member until the password is changed. Banned members are refused at login.
type Member struct {
	ID           string
	Account      string
	PasswordHash string
	Name         string
	Email        string
	Tel          string
	BirthDate    string
	Gender       string
	Country      string
	Role         string
	Enabled      bool
	Banned       bool
	DeviceToken  string
	CreatedAt    time.Time
	LastUpdate   time.Time
}

// Profile holds the member-editable fields.
type Profile struct {
	Name      string
	Country   string
	Gender    string
	BirthDate string
}

// OTPChallenge is the single live challenge for a member.
//
// A challenge is consumable only while Used is false and now is before
// ExpireAt. Saving a new challenge overwrites the previous one.
type OTPChallenge struct {
	MemberID  string
	Code      string
	CreatedAt time.Time
	ExpireAt  time.Time
	Used      bool
}

// MemberProvider is the member store. Lookups with no match return
// ErrMemberNotFound.
type MemberProvider interface {
	GetMemberByID(ctx context.Context, id string) (Member, error)
	GetMemberByAccount(ctx context.Context, account string) (Member, error)
	GetMemberByEmail(ctx context.Context, email string) (Member, error)
	AccountExists(ctx context.Context, account string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	CreateMember(ctx context.Context, m Member) error
	UpdatePassword(ctx context.Context, id, hash string, enabled bool) error
	SetEnabled(ctx context.Context, id string, enabled bool) error
	UpdateEmail(ctx context.Context, id, email string) error
	UpdateProfile(ctx context.Context, id string, p Profile) error
	UpdateDeviceToken(ctx context.Context, id, token string) error
	Deactivate(ctx context.Context, id string) error
}

// ChallengeStore persists OTP challenges. SaveChallenge is an upsert keyed
// by member id; GetChallenge returns nil, nil when none exists.
type ChallengeStore interface {
	SaveChallenge(ctx context.Context, c OTPChallenge) error
	GetChallenge(ctx context.Context, memberID string) (*OTPChallenge, error)
	MarkChallengeUsed(ctx context.Context, memberID string) error
}

// KeyStore supplies the base64 PKCS8 signing key for a service name.
type KeyStore interface {
	SigningKey(ctx context.Context, serviceName string) (string, error)
}

// AppVersionProvider returns the current mobile app version code, or ""
// when none is published.
type AppVersionProvider interface {
	LatestAppVersion(ctx context.Context) (string, error)
}

// PushSender and MailSender deliver codes outside the engine.
type (
	PushSender = notify.PushSender
	MailSender = notify.MailSender
)

// AuthEvent is the public event model emitted to an EventSink.
type AuthEvent = internalaudit.Event

// EventSink receives auth events from the async dispatcher.
type EventSink = internalaudit.Sink

// TokenPair is the credential pair issued after a verified challenge.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	Member       Member
}

// AuthResult is returned by Engine.AuthenticateRequest.
//
// Anonymous is set when the request carried no credentials. RenewedAccess
// holds a freshly issued access token when the request was accepted on its
// refresh token; the caller attaches it to the response.
type AuthResult struct {
	MemberID      string
	Member        Member
	Anonymous     bool
	RenewedAccess string
}

// LoginClient selects web or app login behavior.
type LoginClient uint8

const (
	ClientWeb LoginClient = iota
	ClientApp
)

// LoginRequest is the first login step.
//
// For ClientApp, DeviceToken is required and DeviceMemberID is the member id
// the device is already bound to, or "0" on first use.
type LoginRequest struct {
	Account        string
	Password       string
	Client         LoginClient
	DeviceToken    string
	DeviceMemberID string
}

// LoginResult is returned once the challenge is issued. The code itself is
// only ever handed to the push dispatcher.
type LoginResult struct {
	MemberID string
}

// RegisterRequest is the sign-up input.
type RegisterRequest struct {
	Account   string
	Password  string
	Name      string
	Email     string
	Tel       string
	BirthDate string
	Gender    string
	Country   string
}

// ChangePasswordRequest changes a member's password.
type ChangePasswordRequest struct {
	CurrentPassword string
	NewPassword1    string
	NewPassword2    string
}
