// Package auth issues and validates the HS256 access tokens handed out on
// login and registration.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrNoSecret = errors.New("jwt secret is required")

type Config struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
}

// Claims are the custom claims carried next to the registered ones.
type Claims struct {
	Role string `json:"role"`
}

func (c *Claims) Validate(context.Context) error {
	if c.Role == "" {
		return errors.New("role claim is missing")
	}
	return nil
}

type tokenClaims struct {
	Claims
	jwt.RegisteredClaims
}

type Issuer struct {
	cfg Config
	now func() time.Time
}

func NewIssuer(cfg Config) (*Issuer, error) {
	if cfg.Secret == "" {
		return nil, ErrNoSecret
	}
	return &Issuer{cfg: cfg, now: time.Now}, nil
}

// Issue signs a token for the user that expires after the configured TTL.
func (i *Issuer) Issue(userID uuid.UUID, role string) (string, time.Time, error) {
	now := i.now()
	expires := now.Add(i.cfg.TTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Claims: Claims{Role: role},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.cfg.Issuer,
			Subject:   userID.String(),
			Audience:  jwt.ClaimStrings{i.cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(expires),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString([]byte(i.cfg.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// NewValidator validates tokens produced by an Issuer with the same Config.
func NewValidator(cfg Config) (*validator.Validator, error) {
	if cfg.Secret == "" {
		return nil, ErrNoSecret
	}
	keyFunc := func(context.Context) (interface{}, error) {
		return []byte(cfg.Secret), nil
	}
	return validator.New(
		keyFunc,
		validator.HS256,
		cfg.Issuer,
		[]string{cfg.Audience},
		validator.WithCustomClaims(func() validator.CustomClaims {
			return &Claims{}
		}),
		validator.WithAllowedClockSkew(30*time.Second),
	)
}
