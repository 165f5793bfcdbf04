package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, v *HMACValidator, claims *Claims) string {
	t.Helper()
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	}
	token, err := v.SignToken(claims)
	require.NoError(t, err)
	return token
}

func TestNewHMACValidator_EmptySecret(t *testing.T) {
	_, err := NewHMACValidator("", "")
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestHMACValidator_ValidateToken(t *testing.T) {
	validator, err := NewHMACValidator("s3cret", "llm-cascade")
	require.NoError(t, err)
	other, err := NewHMACValidator("different", "llm-cascade")
	require.NoError(t, err)

	expired := newClaims("old")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	wrongIssuer := newClaims("elsewhere")
	wrongIssuer.Issuer = "someone-else"

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, newClaims("forever")).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alg",
			Issuer:    "llm-cascade",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantSub string
		wantErr bool
	}{
		{name: "valid", token: signedToken(t, validator, newClaims("user-1")), wantSub: "user-1"},
		{name: "wrong secret", token: signedToken(t, other, newClaims("user-1")), wantErr: true},
		{name: "expired", token: signedToken(t, validator, expired), wantErr: true},
		{name: "wrong issuer", token: signedToken(t, validator, wrongIssuer), wantErr: true},
		{name: "missing expiry", token: noExpiry, wantErr: true},
		{name: "unexpected algorithm", token: hs512, wantErr: true},
		{name: "garbage", token: "not.a.jwt", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := validator.ValidateToken(context.Background(), tt.token)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, claims)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSub, claims.Subject)
			assert.Equal(t, "llm-cascade", claims.Issuer)
		})
	}
}

func TestHMACValidator_NoIssuerAcceptsAny(t *testing.T) {
	validator, err := NewHMACValidator("s3cret", "")
	require.NoError(t, err)

	claims := newClaims("user-2")
	claims.Issuer = "anyone"

	got, err := validator.ValidateToken(context.Background(), signedToken(t, validator, claims))
	require.NoError(t, err)
	assert.Equal(t, "anyone", got.Issuer)
}
