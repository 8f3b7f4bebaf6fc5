package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifierRoundTrip(t *testing.T) {
	v := NewVerifier("secret")
	token, err := v.Issue("user-1", time.Hour)
	require.NoError(t, err)

	userID, err := v.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestVerifierRejects(t *testing.T) {
	v := NewVerifier("secret")

	expired, err := v.Issue("user-1", -time.Minute)
	require.NoError(t, err)
	wrongKey, err := NewVerifier("other").Issue("user-1", time.Hour)
	require.NoError(t, err)
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	otherAlg, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{Subject: "user-1"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := map[string]struct {
		token string
		want  error
	}{
		"garbage":    {token: "not-a-token", want: ErrInvalidToken},
		"expired":    {token: expired, want: ErrInvalidToken},
		"wrong key":  {token: wrongKey, want: ErrInvalidToken},
		"other alg":  {token: otherAlg, want: ErrInvalidToken},
		"no subject": {token: noSubject, want: ErrMissingSubject},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := v.ValidateToken(context.Background(), tt.token)
			require.ErrorIs(t, err, tt.want)
		})
	}
}
