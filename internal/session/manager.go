// Package session identifies the caller of an API request.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"LeadDesk/internal/constants"
	"LeadDesk/internal/models"
)

// Session is the authenticated caller as seen by the service layer.
type Session struct {
	UserID      string
	Email       string
	IsAdmin     bool
	IsSuspended bool
}

// FromUser builds a session from a stored user.
func FromUser(u models.User) Session {
	return Session{
		UserID:      u.ID,
		Email:       u.Email,
		IsAdmin:     u.IsAdmin,
		IsSuspended: u.IsSuspended,
	}
}

func (s Session) Role() string {
	if s.IsAdmin {
		return constants.ROLE_ADMIN
	}
	return constants.ROLE_AFFILIATE
}

type contextKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(contextKey{}).(Session)
	return s, ok
}

var ErrInvalidToken = errors.New("invalid access token")

// Claims are the parts of a Supabase access token this service uses.
type Claims struct {
	Subject string
	Email   string
}

// Manager verifies Supabase access tokens signed with the project's JWT secret.
type Manager struct {
	secret []byte
}

func NewManager(jwtSecret string) *Manager {
	return &Manager{secret: []byte(jwtSecret)}
}

// BearerToken extracts the token from an "Authorization: Bearer ..." value.
func BearerToken(header string) (string, error) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", fmt.Errorf("%w: malformed authorization header", ErrInvalidToken)
	}
	return strings.TrimSpace(parts[1]), nil
}

// Verify checks the HS256 signature and expiry and returns subject and email.
func (m *Manager) Verify(token string) (Claims, error) {
	if len(m.secret) == 0 {
		return Claims{}, fmt.Errorf("%w: no signing secret configured", ErrInvalidToken)
	}
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	email, _ := claims["email"].(string)
	return Claims{Subject: sub, Email: email}, nil
}
