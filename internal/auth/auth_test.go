package auth

import (
	"context"
	"testing"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/google/uuid"
)

var testConfig = Config{
	Secret:   "test-secret-with-enough-entropy",
	Issuer:   "carpool-test",
	Audience: "carpool-clients",
	TTL:      time.Hour,
}

func TestIssueAndValidate(t *testing.T) {
	issuer, err := NewIssuer(testConfig)
	if err != nil {
		t.Fatalf("failed to create issuer: %v", err)
	}
	v, err := NewValidator(testConfig)
	if err != nil {
		t.Fatalf("failed to create validator: %v", err)
	}

	userID := uuid.New()
	token, expires, err := issuer.Issue(userID, "driver")
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	if time.Until(expires) <= 0 {
		t.Errorf("expected expiry in the future, got %s", expires)
	}

	got, err := v.ValidateToken(context.Background(), token)
	if err != nil {
		t.Fatalf("failed to validate token: %v", err)
	}
	claims := got.(*validator.ValidatedClaims)
	if claims.RegisteredClaims.Subject != userID.String() {
		t.Errorf("expected subject %s, got %s", userID, claims.RegisteredClaims.Subject)
	}
	if role := claims.CustomClaims.(*Claims).Role; role != "driver" {
		t.Errorf("expected role driver, got %s", role)
	}
}

func TestValidate_RejectsOtherSecret(t *testing.T) {
	other := testConfig
	other.Secret = "another-secret"
	issuer, _ := NewIssuer(other)
	token, _, err := issuer.Issue(uuid.New(), "passenger")
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	v, _ := NewValidator(testConfig)
	if _, err := v.ValidateToken(context.Background(), token); err == nil {
		t.Error("expected token signed with another secret to be rejected")
	}
}

func TestValidate_RejectsExpired(t *testing.T) {
	issuer, _ := NewIssuer(testConfig)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := issuer.Issue(uuid.New(), "passenger")
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	v, _ := NewValidator(testConfig)
	if _, err := v.ValidateToken(context.Background(), token); err == nil {
		t.Error("expected expired token to be rejected")
	}
}

func TestNewIssuer_RequiresSecret(t *testing.T) {
	if _, err := NewIssuer(Config{}); err != ErrNoSecret {
		t.Errorf("expected ErrNoSecret, got %v", err)
	}
}
