package security

import (
	"testing"
	"time"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "hunter2" {
		t.Fatalf("expected hashed password, got plaintext")
	}
	if !CheckPassword(hash, "hunter2") {
		t.Fatalf("expected password to match hash")
	}
	if CheckPassword(hash, "wrong") {
		t.Fatalf("expected wrong password to fail")
	}
}

func TestAdminToken_RoundTrip(t *testing.T) {
	signed, err := SignAdminToken("secret", time.Hour, 42, "root")
	if err != nil {
		t.Fatalf("SignAdminToken: %v", err)
	}
	claims, err := ParseAdminToken("secret", signed)
	if err != nil {
		t.Fatalf("ParseAdminToken: %v", err)
	}
	if claims.AdminID != 42 {
		t.Fatalf("expected admin_id=42, got %d", claims.AdminID)
	}
	if claims.Username != "root" {
		t.Fatalf("expected username=root, got %q", claims.Username)
	}
}

func TestAdminToken_WrongSecret(t *testing.T) {
	signed, err := SignAdminToken("secret", time.Hour, 42, "root")
	if err != nil {
		t.Fatalf("SignAdminToken: %v", err)
	}
	if _, errParse := ParseAdminToken("other-secret", signed); errParse == nil {
		t.Fatalf("expected parse error with wrong secret")
	}
}

func TestResellerToken_RejectsAdminToken(t *testing.T) {
	signed, err := SignAdminToken("secret", time.Hour, 42, "root")
	if err != nil {
		t.Fatalf("SignAdminToken: %v", err)
	}
	if _, errParse := ParseResellerToken("secret", signed); errParse == nil {
		t.Fatalf("expected admin token to be rejected as reseller token")
	}
}
