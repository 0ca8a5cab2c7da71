package security

import (
	"strings"
	"testing"
)

func TestHashAndVerifyPassword(t *testing.T) {
	encoded, err := HashPassword("1234abcd!")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if !strings.Contains(encoded, ":") {
		t.Fatalf("expected salt:hash encoding, got %q", encoded)
	}

	ok, err := VerifyPassword("1234abcd!", encoded)
	if err != nil {
		t.Fatalf("verify password: %v", err)
	}
	if !ok {
		t.Fatal("correct password rejected")
	}

	ok, err = VerifyPassword("wrong-password1!", encoded)
	if err != nil {
		t.Fatalf("verify wrong password: %v", err)
	}
	if ok {
		t.Fatal("wrong password accepted")
	}
}

func TestHashPasswordUniqueSalts(t *testing.T) {
	first, err := HashPassword("1234abcd!")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	second, err := HashPassword("1234abcd!")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if first == second {
		t.Fatal("two hashes of the same password share a salt")
	}
}

func TestVerifyPasswordMalformed(t *testing.T) {
	if ok, _ := VerifyPassword("", "whatever"); ok {
		t.Fatal("empty password accepted")
	}
	if _, err := VerifyPassword("1234abcd!", "not-encoded"); err == nil {
		t.Fatal("expected error for malformed hash")
	}
}

func TestGenerateSecureToken(t *testing.T) {
	token, err := GenerateSecureToken(32)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if len(token) < 40 {
		t.Fatalf("token too short: %d bytes", len(token))
	}

	other, err := GenerateSecureToken(32)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if token == other {
		t.Fatal("two generated tokens are identical")
	}

	if _, err := GenerateSecureToken(0); err == nil {
		t.Fatal("expected error for non-positive length")
	}
}

func TestHashTokenDeterministic(t *testing.T) {
	if HashToken("secret") != HashToken("secret") {
		t.Fatal("hash of identical input differs")
	}
	if HashToken("secret") == HashToken("other") {
		t.Fatal("hash collision between distinct inputs")
	}
	if len(HashToken("secret")) != 64 {
		t.Fatal("expected hex-encoded sha256 output")
	}
}
