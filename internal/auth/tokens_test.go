// internal/auth/tokens_test.go

package auth

import (
	"testing"
	"time"
)

func TestGenerateAndValidate(t *testing.T) {
	tm := NewTokenManager("test-secret")
	user := &User{ID: 42, Email: "a@example.com", Username: "alice", Role: "admin"}

	token, err := tm.Generate(user, "access", time.Minute)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	claims, err := tm.Validate(token)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if claims.UserID != 42 || claims.Username != "alice" || claims.Role != "admin" || claims.Type != "access" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := NewTokenManager("secret-a").Generate(&User{ID: 1}, "access", time.Minute)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	if _, err := NewTokenManager("secret-b").Validate(token); err == nil {
		t.Fatal("token signed with a different secret must not validate")
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	tm := NewTokenManager("test-secret")
	token, err := tm.Generate(&User{ID: 1}, "access", -time.Minute)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	if _, err := tm.Validate(token); err == nil {
		t.Fatal("expired token must not validate")
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	if _, err := NewTokenManager("test-secret").Validate("not-a-token"); err == nil {
		t.Fatal("malformed token must not validate")
	}
}
