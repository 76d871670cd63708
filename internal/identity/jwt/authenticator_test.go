package jwt

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthenticator(t *testing.T, cfg Config) *Authenticator {
	t.Helper()
	if cfg.SecretKey == "" {
		cfg.SecretKey = "test-secret"
	}
	a, err := NewAuthenticator(cfg)
	require.NoError(t, err)
	return a
}

func TestNewAuthenticator_EmptySecret(t *testing.T) {
	_, err := NewAuthenticator(Config{})
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestAuthenticator_IssueAndValidate(t *testing.T) {
	a := newTestAuthenticator(t, Config{Issuer: "stockwatch-bot", TokenDuration: time.Hour})

	token, err := a.IssueToken("123456789")
	require.NoError(t, err)

	userID, err := a.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "123456789", userID)
}

func TestAuthenticator_IssueToken_EmptyUser(t *testing.T) {
	a := newTestAuthenticator(t, Config{})

	_, err := a.IssueToken("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticator_ValidateToken_Expired(t *testing.T) {
	a := newTestAuthenticator(t, Config{TokenDuration: time.Minute})
	a.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

	token, err := a.IssueToken("42")
	require.NoError(t, err)

	a.now = func() time.Time { return time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC) }
	_, err = a.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestAuthenticator_ValidateToken_Invalid(t *testing.T) {
	a := newTestAuthenticator(t, Config{Issuer: "stockwatch-bot"})
	other := newTestAuthenticator(t, Config{SecretKey: "other-secret", Issuer: "stockwatch-bot"})
	wrongIssuer := newTestAuthenticator(t, Config{Issuer: "someone-else"})

	foreign, err := other.IssueToken("42")
	require.NoError(t, err)
	otherIssuer, err := wrongIssuer.IssueToken("42")
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer: "stockwatch-bot",
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject: "42",
		Issuer:  "stockwatch-bot",
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-token"},
		{name: "wrong secret", token: foreign},
		{name: "wrong issuer", token: otherIssuer},
		{name: "missing subject", token: noSubject},
		{name: "unexpected algorithm", token: hs512},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userID, err := a.ValidateToken(context.Background(), tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.Empty(t, userID)
		})
	}
}
