package password

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func testConfig() Config {
	return Config{Cost: bcrypt.MinCost}
}

func TestHashAndVerify(t *testing.T) {
	hasher, err := NewBcrypt(testConfig())
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}

	hash, err := hasher.Hash("P@ssw0rd-Ascii")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$2a$04$") {
		t.Fatalf("unexpected hash prefix: %s", hash)
	}

	ok, err := hasher.Verify("P@ssw0rd-Ascii", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatal("expected password verification to succeed")
	}
}

func TestVerifyWrongPassword(t *testing.T) {
	hasher, err := NewBcrypt(testConfig())
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}

	hash, err := hasher.Hash("correct-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := hasher.Verify("wrong-password", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatal("expected wrong password verification to fail")
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	hasher, _ := NewBcrypt(testConfig())
	if _, err := hasher.Verify("anything", "not-a-hash"); err == nil {
		t.Fatal("expected malformed hash error")
	}
}

func TestHashRejectsOutOfRangeInput(t *testing.T) {
	hasher, _ := NewBcrypt(testConfig())
	if _, err := hasher.Hash(""); err == nil {
		t.Fatal("expected empty password rejection")
	}
	if _, err := hasher.Hash(strings.Repeat("a", 73)); err == nil {
		t.Fatal("expected long password rejection")
	}
}

func TestNeedsUpgrade(t *testing.T) {
	weak, _ := NewBcrypt(Config{Cost: bcrypt.MinCost})
	strong, _ := NewBcrypt(Config{Cost: bcrypt.MinCost + 1})

	hash, err := weak.Hash("password-123")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	if up, err := weak.NeedsUpgrade(hash); err != nil || up {
		t.Fatalf("same cost should not need upgrade: up=%v err=%v", up, err)
	}
	if up, err := strong.NeedsUpgrade(hash); err != nil || !up {
		t.Fatalf("higher cost should need upgrade: up=%v err=%v", up, err)
	}
}

func TestNewBcryptRejectsBadCost(t *testing.T) {
	if _, err := NewBcrypt(Config{Cost: 2}); err == nil {
		t.Fatal("expected low cost rejection")
	}
	if _, err := NewBcrypt(Config{Cost: 40}); err == nil {
		t.Fatal("expected high cost rejection")
	}
}
