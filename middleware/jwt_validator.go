package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrEmptySecret is returned when an HMAC validator is built without a key
var ErrEmptySecret = errors.New("jwt secret must not be empty")

// HMACValidator validates HS256 bearer tokens signed with a shared secret
type HMACValidator struct {
	secret []byte
	issuer string
}

// NewHMACValidator creates a validator. When issuer is non-empty the token's
// iss claim must match it.
func NewHMACValidator(secret, issuer string) (*HMACValidator, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &HMACValidator{secret: []byte(secret), issuer: issuer}, nil
}

// ValidateToken parses the token, checks its signature and expiry, and returns its claims
func (v *HMACValidator) ValidateToken(_ context.Context, token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// SignToken issues an HS256 token for the given claims. It is used by
// operators and tests to mint tokens accepted by the validator.
func (v *HMACValidator) SignToken(claims *Claims) (string, error) {
	if claims.Issuer == "" && v.issuer != "" {
		claims.Issuer = v.issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
