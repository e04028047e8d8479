package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"strings"
)

// ErrInvalidKey is returned when key material cannot be decoded as RSA.
var ErrInvalidKey = errors.New("invalid key")

// DecodePrivateKey decodes a base64 PKCS8 DER RSA private key.
// Embedded whitespace (line wrapping) is ignored.
func DecodePrivateKey(encoded string) (*rsa.PrivateKey, error) {
	der, err := decodeBase64(encoded)
	if err != nil {
		return nil, err
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, errors.Join(ErrInvalidKey, err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, ErrInvalidKey
	}
	return key, nil
}

// DecodePublicKey decodes a base64 X.509 (PKIX) DER RSA public key.
func DecodePublicKey(encoded string) (*rsa.PublicKey, error) {
	der, err := decodeBase64(encoded)
	if err != nil {
		return nil, err
	}
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, errors.Join(ErrInvalidKey, err)
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, ErrInvalidKey
	}
	return key, nil
}

// EncodePrivateKey is the inverse of DecodePrivateKey.
func EncodePrivateKey(key *rsa.PrivateKey) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

// EncodePublicKey is the inverse of DecodePublicKey.
func EncodePublicKey(key *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

// GenerateKeyPair creates a new RSA signing key.
func GenerateKeyPair(bits int) (*rsa.PrivateKey, error) {
	if bits < 2048 {
		return nil, errors.New("rsa key size must be >= 2048 bits")
	}
	return rsa.GenerateKey(rand.Reader, bits)
}

func decodeBase64(encoded string) ([]byte, error) {
	cleaned := strings.Join(strings.Fields(encoded), "")
	if cleaned == "" {
		return nil, ErrInvalidKey
	}
	der, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return nil, errors.Join(ErrInvalidKey, err)
	}
	return der, nil
}
