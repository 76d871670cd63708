// Package jwt issues and validates the HS256 tokens that identify API subscribers.
// The chat bot mints a token per chat with the shared secret; the subject is the chat id.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Errors returned by ValidateToken.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrEmptySecret  = errors.New("jwt secret is empty")
)

// Config contains authenticator configuration.
type Config struct {
	SecretKey     string
	Issuer        string
	TokenDuration time.Duration
}

// Authenticator validates subscriber tokens.
type Authenticator struct {
	config Config
	now    func() time.Time
}

// NewAuthenticator creates a new authenticator.
func NewAuthenticator(config Config) (*Authenticator, error) {
	if config.SecretKey == "" {
		return nil, ErrEmptySecret
	}
	return &Authenticator{config: config, now: time.Now}, nil
}

// IssueToken signs a token for userID. A zero TokenDuration issues a token without expiry.
func (a *Authenticator) IssueToken(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("issue token: %w", ErrInvalidToken)
	}

	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:  userID,
		Issuer:   a.config.Issuer,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if a.config.TokenDuration > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(a.config.TokenDuration))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(a.config.SecretKey))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken checks the signature and expiry of token and returns its subject.
func (a *Authenticator) ValidateToken(_ context.Context, token string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	}
	if a.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.config.Issuer))
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return []byte(a.config.SecretKey), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}
