package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"math/big"
	"strings"
)

const (
	otpFloor               = 1000
	otpSpan                = 9000
	verificationStringSize = 32
	temporaryPasswordSize  = 10
	temporaryPasswordChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// ErrRandomUnavailable indicates the secure random source could not be read.
var ErrRandomUnavailable = errors.New("secure random source unavailable")

// Source is the entropy reader used by the generators. Tests may replace it.
var Source io.Reader = rand.Reader

// NewOTPCode returns a 4-digit code sampled uniformly from [1000, 9999].
func NewOTPCode() (string, error) {
	n, err := rand.Int(Source, big.NewInt(otpSpan))
	if err != nil {
		return "", errors.Join(ErrRandomUnavailable, err)
	}
	return n.Add(n, big.NewInt(otpFloor)).String(), nil
}

// NewVerificationString returns 32 random bytes as unpadded base64url.
func NewVerificationString() (string, error) {
	var raw [verificationStringSize]byte
	if _, err := io.ReadFull(Source, raw[:]); err != nil {
		return "", errors.Join(ErrRandomUnavailable, err)
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// NewTemporaryPassword returns a 10 character alphanumeric password.
func NewTemporaryPassword() (string, error) {
	var b strings.Builder
	b.Grow(temporaryPasswordSize)

	max := big.NewInt(int64(len(temporaryPasswordChars)))
	for i := 0; i < temporaryPasswordSize; i++ {
		n, err := rand.Int(Source, max)
		if err != nil {
			return "", errors.Join(ErrRandomUnavailable, err)
		}
		b.WriteByte(temporaryPasswordChars[n.Int64()])
	}
	return b.String(), nil
}
