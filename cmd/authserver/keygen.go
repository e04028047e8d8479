package main

import (
	"context"

	"github.com/almagest-io/almagestAuth/jwt"
)

const signingKeyBits = 2048

type signingKeyStore interface {
	SaveSigningKey(ctx context.Context, service, key string) error
}

// generateSigningKey stores a new PKCS8 private key under service and
// returns the matching base64 X.509 public key for JWT_PUBLIC_KEY.
func generateSigningKey(ctx context.Context, store signingKeyStore, service string) (string, error) {
	key, err := jwt.GenerateKeyPair(signingKeyBits)
	if err != nil {
		return "", err
	}
	priv, err := jwt.EncodePrivateKey(key)
	if err != nil {
		return "", err
	}
	pub, err := jwt.EncodePublicKey(&key.PublicKey)
	if err != nil {
		return "", err
	}
	if err := store.SaveSigningKey(ctx, service, priv); err != nil {
		return "", err
	}
	return pub, nil
}
