package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestFromTokenExtractsUserID(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"id":  "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	sess, err := FromToken(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", sess.UserID)
	require.Equal(t, token, sess.Token)
}

func TestFromTokenAcceptsSubjectClaim(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"sub": "user-2",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	sess, err := FromToken(token)
	require.NoError(t, err)
	require.Equal(t, "user-2", sess.UserID)
}

func TestFromTokenRejectsExpired(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"id":  "user-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	_, err := FromToken(token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestFromTokenRejectsMissingUserID(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := FromToken(token)
	require.ErrorIs(t, err, ErrNoUserID)
}

func TestFromTokenRejectsEmptyAndGarbage(t *testing.T) {
	_, err := FromToken("")
	require.ErrorIs(t, err, ErrNoToken)

	_, err = FromToken("not-a-jwt")
	require.Error(t, err)
}
