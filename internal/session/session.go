// internal/session/session.go

package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrNoToken      = errors.New("no auth token")
	ErrTokenExpired = errors.New("auth token expired")
	ErrNoUserID     = errors.New("token carries no user id")
)

// Session is the authenticated identity handed explicitly to every
// component that needs it. Nothing reads ambient storage mid-operation.
type Session struct {
	UserID string
	Token  string
}

// New builds a session from an already-known identity.
func New(userID, token string) Session {
	return Session{UserID: userID, Token: token}
}

// FromToken derives the session from the JWT the auth collaborator
// stored. The signature is the server's to verify; the client only
// needs the subject and a sanity check on expiry.
func FromToken(token string) (Session, error) {
	if token == "" {
		return Session{}, ErrNoToken
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Session{}, fmt.Errorf("failed to parse token: %w", err)
	}

	if !claims.VerifyExpiresAt(time.Now().Unix(), false) {
		return Session{}, ErrTokenExpired
	}

	userID := firstString(claims, "id", "userId", "sub")
	if userID == "" {
		return Session{}, ErrNoUserID
	}

	return Session{UserID: userID, Token: token}, nil
}

func firstString(claims jwt.MapClaims, keys ...string) string {
	for _, k := range keys {
		if v, ok := claims[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
