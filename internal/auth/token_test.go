package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)

	token, err := svc.Issue(42, "doc@clinic.test", RoleDoctor)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if token == "" {
		t.Fatal("Issue() returned empty token")
	}

	claims, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("UserID = %d, want 42", claims.UserID)
	}
	if claims.Email != "doc@clinic.test" {
		t.Errorf("Email = %q, want %q", claims.Email, "doc@clinic.test")
	}
	if claims.Role != RoleDoctor {
		t.Errorf("Role = %q, want %q", claims.Role, RoleDoctor)
	}
}

func TestTokenExpired(t *testing.T) {
	svc := &TokenService{secret: []byte("test-secret"), ttl: -time.Minute}

	token, err := svc.Issue(1, "u@clinic.test", RolePatient)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	_, err = svc.Verify(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Verify() error = %v, want ErrTokenExpired", err)
	}
}

func TestTokenWrongSecret(t *testing.T) {
	issuer := NewTokenService("secret-a", time.Hour)
	verifier := NewTokenService("secret-b", time.Hour)

	token, err := issuer.Issue(1, "u@clinic.test", RoleStaff)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	_, err = verifier.Verify(token)
	if !errors.Is(err, ErrTokenMalformed) {
		t.Errorf("Verify() error = %v, want ErrTokenMalformed", err)
	}
}

func TestTokenMalformed(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)

	for _, token := range []string{"", "garbage", "a.b.c"} {
		if _, err := svc.Verify(token); !errors.Is(err, ErrTokenMalformed) {
			t.Errorf("Verify(%q) error = %v, want ErrTokenMalformed", token, err)
		}
	}
}

func TestTokenTTLDefault(t *testing.T) {
	svc := NewTokenService("test-secret", 0)
	if svc.TTL() != defaultTokenTTL {
		t.Errorf("TTL() = %v, want %v", svc.TTL(), defaultTokenTTL)
	}
}
