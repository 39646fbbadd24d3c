package server

import (
	"context"
	"crypto/subtle"
	"fmt"
)

// Authenticator verifies an identity claim carried by an authenticate
// envelope and returns the user id to bind to the connection.
type Authenticator interface {
	Authenticate(ctx context.Context, userID int64, sessionToken string) (int64, error)
}

// TrustingAuthenticator accepts any positive user id. Session tokens are
// ignored.
type TrustingAuthenticator struct{}

func (TrustingAuthenticator) Authenticate(_ context.Context, userID int64, _ string) (int64, error) {
	if userID <= 0 {
		return 0, ErrAuthFailed.withMessage(fmt.Sprintf("invalid user id %d", userID))
	}
	return userID, nil
}

// StaticTokenAuthenticator accepts a user only with the token configured
// for it.
type StaticTokenAuthenticator struct {
	tokens map[int64]string
}

// NewStaticTokenAuthenticator copies tokens into a new authenticator.
func NewStaticTokenAuthenticator(tokens map[int64]string) *StaticTokenAuthenticator {
	copied := make(map[int64]string, len(tokens))
	for id, token := range tokens {
		copied[id] = token
	}
	return &StaticTokenAuthenticator{tokens: copied}
}

func (a *StaticTokenAuthenticator) Authenticate(_ context.Context, userID int64, sessionToken string) (int64, error) {
	expected, ok := a.tokens[userID]
	if !ok || expected == "" || sessionToken == "" {
		return 0, ErrAuthFailed
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(sessionToken)) != 1 {
		return 0, ErrAuthFailed
	}
	return userID, nil
}

// NewAuthenticator picks the token authenticator when tokens are configured.
func NewAuthenticator(cfg AuthConfig) Authenticator {
	if len(cfg.Tokens) > 0 {
		return NewStaticTokenAuthenticator(cfg.Tokens)
	}
	return TrustingAuthenticator{}
}
