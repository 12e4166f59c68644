package session

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LeadDesk/internal/constants"
	"LeadDesk/internal/models"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func sign(t *testing.T, method jwt.SigningMethod, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func TestVerifyValidToken(t *testing.T) {
	tok := sign(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{
		"sub":   "0b7c2c6e-1111-2222-3333-444455556666",
		"email": "ann@x.io",
		"role":  "authenticated",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	claims, err := NewManager(testSecret).Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "0b7c2c6e-1111-2222-3333-444455556666", claims.Subject)
	assert.Equal(t, "ann@x.io", claims.Email)
}

func TestVerifyRejects(t *testing.T) {
	m := NewManager(testSecret)
	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", sign(t, jwt.SigningMethodHS256, "another-secret-another-secret-another", jwt.MapClaims{"sub": "u-1"})},
		{"expired", sign(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "u-1", "exp": time.Now().Add(-time.Minute).Unix()})},
		{"no subject", sign(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"email": "a@b.co"})},
		{"garbage", "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Verify(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestVerifyWithoutSecret(t *testing.T) {
	_, err := NewManager("").Verify("x.y.z")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestBearerToken(t *testing.T) {
	tok, err := BearerToken("Bearer abc.def")
	require.NoError(t, err)
	assert.Equal(t, "abc.def", tok)

	tok, err = BearerToken("bearer   abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	for _, bad := range []string{"", "Bearer", "Basic abc", "Bearer  "} {
		_, err := BearerToken(bad)
		assert.ErrorIs(t, err, ErrInvalidToken, bad)
	}
}

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	s := FromUser(models.User{ID: "u-1", Email: "a@b.co", IsAdmin: true})
	got, ok := FromContext(WithSession(context.Background(), s))
	require.True(t, ok)
	assert.Equal(t, s, got)
	assert.Equal(t, constants.ROLE_ADMIN, got.Role())
	assert.Equal(t, constants.ROLE_AFFILIATE, Session{}.Role())
}
