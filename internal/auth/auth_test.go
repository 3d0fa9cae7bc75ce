package auth

import (
	"errors"
	"testing"
	"time"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	hash, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	return NewService("test-secret", "operator", hash, time.Hour)
}

func TestAuthenticateAndValidate(t *testing.T) {
	s := newTestService(t)

	token, err := s.Authenticate("operator", "secret")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	claims, err := s.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Username != "operator" {
		t.Errorf("username = %q, want operator", claims.Username)
	}
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	s := newTestService(t)

	if _, err := s.Authenticate("operator", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := s.Authenticate("intruder", "secret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong username: err = %v, want ErrInvalidCredentials", err)
	}
}

func TestAuthenticateUnconfigured(t *testing.T) {
	s := NewService("test-secret", "", "", time.Hour)

	if _, err := s.Authenticate("operator", "secret"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestValidateRejectsForeignToken(t *testing.T) {
	s := newTestService(t)
	other := NewService("different-secret", "operator", "hash", time.Hour)

	token, err := s.Authenticate("operator", "secret")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	if _, err := other.ValidateToken(token); err == nil {
		t.Error("token signed with another secret must be rejected")
	}
}
