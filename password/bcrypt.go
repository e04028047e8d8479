package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const maxPassBytes = 72

// Config defines the bcrypt work factor.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	Cost int
}

// Bcrypt hashes and verifies member passwords.
//
// Bcrypt instances are immutable after construction and safe for concurrent use.
type Bcrypt struct {
	config Config
}

// NewBcrypt describes the newbcrypt operation and its observable behavior.
//
// NewBcrypt returns an error when the cost lies outside bcrypt's accepted range.
// NewBcrypt does not mutate shared global state.
func NewBcrypt(cfg Config) (*Bcrypt, error) {
	if cfg.Cost < bcrypt.MinCost || cfg.Cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be within [%d, %d]", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Bcrypt{config: cfg}, nil
}

// Hash describes the hash operation and its observable behavior.
//
// Hash returns an error for empty input or input longer than 72 bytes, which
// bcrypt would otherwise truncate silently.
func (b *Bcrypt) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	if len(password) > maxPassBytes {
		return "", errors.New("password must be at most 72 bytes")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.config.Cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify describes the verify operation and its observable behavior.
//
// Verify returns (false, nil) on mismatch and an error only when the stored
// hash is malformed.
func (b *Bcrypt) Verify(password string, encodedHash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, err
}

// NeedsUpgrade reports whether encodedHash was produced with a lower cost
// than the configured one.
func (b *Bcrypt) NeedsUpgrade(encodedHash string) (bool, error) {
	cost, err := bcrypt.Cost([]byte(encodedHash))
	if err != nil {
		return false, err
	}
	return cost < b.config.Cost, nil
}
