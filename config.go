package almagestAuth

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

// Config defines a public type used by almagestAuth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	JWT          JWTConfig
	Lockout      LockoutConfig
	Refresh      RefreshConfig
	OTP          OTPConfig
	Password     PasswordConfig
	Cookie       CookieConfig
	Notification NotificationConfig
	Throttle     ThrottleConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls token issuance.
//
// PublicKey is the base64 X.509 verification key. When empty the key is
// derived from the private key loaded through the KeyStore under
// KeyServiceName.
type JWTConfig struct {
	Issuer         string
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	Leeway         time.Duration
	PublicKey      string
	KeyServiceName string
}

/*
====================================
LOCKOUT / REFRESH CONFIG
====================================
*/

// LockoutConfig controls the failure counter.
type LockoutConfig struct {
	Window      time.Duration
	MaxAttempts int
	Prefix      string
}

// RefreshConfig controls the refresh verification record.
type RefreshConfig struct {
	Prefix string
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig controls challenge lifetime and the review test account.
//
// TestAccount always receives TestCode and is exempt from expiry and
// single-use checks. Its password resets use TestTemporaryPassword.
type OTPConfig struct {
	TTL                   time.Duration
	TestAccount           string
	TestCode              string
	TestTemporaryPassword string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig controls hashing.
type PasswordConfig struct {
	BcryptCost     int
	MinLength      int
	UpgradeOnLogin bool
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig controls the credential cookies written by the HTTP layer.
type CookieConfig struct {
	AccessName       string
	RefreshName      string
	Path             string
	Secure           bool
	SameSite         http.SameSite
	AccessMaxAge     time.Duration
	WebRefreshMaxAge time.Duration
	AppRefreshMaxAge time.Duration
}

/*
====================================
NOTIFICATION / THROTTLE CONFIG
====================================
*/

// NotificationConfig controls the deferred push dispatcher.
type NotificationConfig struct {
	Delay         time.Duration
	BufferSize    int
	Workers       int
	RatePerSecond float64
	Burst         int
	SendTimeout   time.Duration
}

// ThrottleConfig bounds mail-producing requests. A zero max disables the
// matching throttle.
type ThrottleConfig struct {
	MaxResetRequests     int
	ResetWindow          time.Duration
	MaxEmailCodeRequests int
	EmailCodeWindow      time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the auth event dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			Issuer:         "https://almagest.io",
			AccessTTL:      10 * time.Minute,
			RefreshTTL:     180 * 24 * time.Hour,
			KeyServiceName: "almagest",
		},
		Lockout: LockoutConfig{
			Window:      10 * time.Minute,
			MaxAttempts: 5,
			Prefix:      "fail",
		},
		Refresh: RefreshConfig{
			Prefix: "refresh",
		},
		OTP: OTPConfig{
			TTL:                   10 * time.Minute,
			TestAccount:           "tester12",
			TestCode:              "0000",
			TestTemporaryPassword: "12345678",
		},
		Password: PasswordConfig{
			BcryptCost:     10,
			MinLength:      8,
			UpgradeOnLogin: true,
		},
		Cookie: CookieConfig{
			AccessName:       "access_token",
			RefreshName:      "refresh_token",
			Path:             "/",
			Secure:           true,
			SameSite:         http.SameSiteStrictMode,
			AccessMaxAge:     10 * time.Minute,
			WebRefreshMaxAge: 180 * 24 * time.Hour,
			AppRefreshMaxAge: 24 * time.Hour,
		},
		Notification: NotificationConfig{
			Delay:         300 * time.Millisecond,
			BufferSize:    1024,
			Workers:       4,
			RatePerSecond: 50,
			Burst:         10,
			SendTimeout:   10 * time.Second,
		},
		Throttle: ThrottleConfig{
			MaxResetRequests:     3,
			ResetWindow:          time.Hour,
			MaxEmailCodeRequests: 5,
			EmailCodeWindow:      10 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	if strings.TrimSpace(c.JWT.Issuer) == "" {
		return errors.New("JWT Issuer must be set")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be longer than AccessTTL")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be within [0, 2m]")
	}
	if strings.TrimSpace(c.JWT.KeyServiceName) == "" {
		return errors.New("JWT KeyServiceName must be set")
	}

	// Lockout
	if c.Lockout.Window <= 0 {
		return errors.New("Lockout Window must be > 0")
	}
	if c.Lockout.MaxAttempts < 1 {
		return errors.New("Lockout MaxAttempts must be >= 1")
	}
	if c.Lockout.Prefix == "" || c.Refresh.Prefix == "" {
		return errors.New("Lockout and Refresh prefixes must be set")
	}
	if c.Lockout.Prefix == c.Refresh.Prefix {
		return errors.New("Lockout and Refresh prefixes must differ")
	}

	// OTP
	if c.OTP.TTL <= 0 {
		return errors.New("OTP TTL must be > 0")
	}
	if c.OTP.TestAccount != "" && len(c.OTP.TestCode) != 4 {
		return errors.New("OTP TestCode must be 4 digits when TestAccount is set")
	}

	// Password
	if c.Password.BcryptCost < 4 || c.Password.BcryptCost > 31 {
		return errors.New("Password BcryptCost must be within [4, 31]")
	}
	if c.Password.MinLength < 8 {
		return errors.New("Password MinLength must be >= 8")
	}

	// Cookie
	if c.Cookie.AccessName == "" || c.Cookie.RefreshName == "" {
		return errors.New("Cookie names must be set")
	}
	if c.Cookie.AccessName == c.Cookie.RefreshName {
		return errors.New("Cookie names must differ")
	}
	if c.Cookie.SameSite == http.SameSiteNoneMode && !c.Cookie.Secure {
		return errors.New("Cookie SameSite=None requires Secure")
	}
	if c.Cookie.AccessMaxAge <= 0 || c.Cookie.WebRefreshMaxAge <= 0 || c.Cookie.AppRefreshMaxAge <= 0 {
		return errors.New("Cookie max ages must be > 0")
	}

	// Notification
	if c.Notification.Delay < 0 {
		return errors.New("Notification Delay must be >= 0")
	}
	if c.Notification.RatePerSecond < 0 {
		return errors.New("Notification RatePerSecond must be >= 0")
	}

	// Throttle
	if c.Throttle.MaxResetRequests > 0 && c.Throttle.ResetWindow <= 0 {
		return errors.New("Throttle ResetWindow must be > 0 when MaxResetRequests is set")
	}
	if c.Throttle.MaxEmailCodeRequests > 0 && c.Throttle.EmailCodeWindow <= 0 {
		return errors.New("Throttle EmailCodeWindow must be > 0 when MaxEmailCodeRequests is set")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
