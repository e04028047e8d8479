package jwt

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoSigningKey indicates the manager was built for verification only.
	ErrNoSigningKey = errors.New("no signing key configured")
	// ErrWrongTokenKind indicates an access token was presented as refresh or the reverse.
	ErrWrongTokenKind = errors.New("wrong token kind")
	// ErrMissingSubject indicates the token carries no subject.
	ErrMissingSubject = errors.New("missing subject")
)

// Config defines how the Manager signs and verifies tokens.
//
// PrivateKey may be nil for a verify-only manager. Now defaults to time.Now.
type Config struct {
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Leeway     time.Duration
	PrivateKey *rsa.PrivateKey
	PublicKey  *rsa.PublicKey
	Now        func() time.Time
}

// Manager issues and verifies RS256 access and refresh tokens.
//
// Manager is immutable after construction and safe for concurrent use.
type Manager struct {
	config Config
	method jwt.SigningMethod
}

// Claims is the payload of both token kinds. Verification is set only on
// refresh tokens.
type Claims struct {
	Verification string `json:"vfs,omitempty"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("issuer is required")
	}
	if cfg.PublicKey == nil {
		if cfg.PrivateKey == nil {
			return nil, errors.New("rs256 requires a public key")
		}
		cfg.PublicKey = &cfg.PrivateKey.PublicKey
	}
	if cfg.PrivateKey != nil && !cfg.PrivateKey.PublicKey.Equal(cfg.PublicKey) {
		return nil, errors.New("public key does not match private key")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Manager{config: cfg, method: jwt.SigningMethodRS256}, nil
}

// CreateAccess signs an access token for subject.
func (m *Manager) CreateAccess(subject string) (string, error) {
	return m.sign(subject, "", m.config.AccessTTL)
}

// CreateRefresh signs a refresh token for subject carrying verification.
func (m *Manager) CreateRefresh(subject, verification string) (string, error) {
	if verification == "" {
		return "", errors.New("refresh token requires a verification string")
	}
	return m.sign(subject, verification, m.config.RefreshTTL)
}

// ParseAccess verifies signature, issuer and expiry of an access token.
func (m *Manager) ParseAccess(tokenStr string) (*Claims, error) {
	claims, err := m.parse(tokenStr, m.options()...)
	if err != nil {
		return nil, err
	}
	if claims.Verification != "" {
		return nil, ErrWrongTokenKind
	}
	return claims, nil
}

// ParseRefresh verifies signature, issuer and expiry of a refresh token and
// requires the verification claim.
func (m *Manager) ParseRefresh(tokenStr string) (*Claims, error) {
	claims, err := m.parse(tokenStr, m.options()...)
	if err != nil {
		return nil, err
	}
	if claims.Verification == "" {
		return nil, ErrWrongTokenKind
	}
	return claims, nil
}

// Subject returns the subject of a correctly signed token even when it has
// expired. Issuer and expiry are not checked.
func (m *Manager) Subject(tokenStr string) (string, error) {
	claims, err := m.parse(tokenStr,
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (m *Manager) sign(subject, verification string, ttl time.Duration) (string, error) {
	if m.config.PrivateKey == nil {
		return "", ErrNoSigningKey
	}
	if subject == "" {
		return "", ErrMissingSubject
	}

	now := m.config.Now()
	claims := Claims{
		Verification: verification,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(m.method, claims)
	return token.SignedString(m.config.PrivateKey)
}

func (m *Manager) options() []jwt.ParserOption {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.config.Now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	return options
}

func (m *Manager) parse(tokenStr string, options ...jwt.ParserOption) (*Claims, error) {
	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.config.PublicKey, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	return claims, nil
}
