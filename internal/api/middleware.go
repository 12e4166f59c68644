package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"LeadDesk/internal/models"
	"LeadDesk/internal/session"
	"LeadDesk/internal/utils"
)

// TokenVerifier turns a bearer token into identity claims.
type TokenVerifier interface {
	Verify(token string) (session.Claims, error)
}

// UserEnsurer loads, or creates on first sight, the user behind a token.
type UserEnsurer interface {
	EnsureUser(ctx context.Context, claims session.Claims) (models.User, error)
}

// AuthMiddleware checks the Authorization header and puts the caller's
// session into the request context.
func AuthMiddleware(verifier TokenVerifier, users UserEnsurer, log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := session.BearerToken(r.Header.Get("Authorization"))
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "Unauthorized: missing bearer token")
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				log.WithError(err).Debug("token rejected")
				writeJSONError(w, http.StatusUnauthorized, "Unauthorized: invalid token")
				return
			}

			user, err := users.EnsureUser(r.Context(), claims)
			if err != nil {
				writeServiceError(w, log, err)
				return
			}

			sess := session.FromUser(user)
			if sess.IsSuspended && !sess.IsAdmin {
				writeJSONError(w, http.StatusForbidden, "Forbidden: account suspended")
				return
			}
			next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), sess)))
		})
	}
}

// RoleMiddleware lets through only callers whose role is requiredRole or higher.
func RoleMiddleware(requiredRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := session.FromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "Unauthorized: no session")
				return
			}
			if !utils.IsRoleOrHigher(sess.Role(), requiredRole) {
				writeJSONError(w, http.StatusForbidden, "Forbidden: insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiter keeps one token bucket per caller.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	log      logrus.FieldLogger
}

func NewRateLimiter(requestsPerSecond float64, burst int, log logrus.FieldLogger) *RateLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
		log:      log,
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = limiter
	}
	return limiter
}

// Handler limits by user id, or by remote address when there is no session.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if sess, ok := session.FromContext(r.Context()); ok {
			key = sess.UserID
		}

		if !rl.getLimiter(key).Allow() {
			rl.log.WithFields(logrus.Fields{
				"key":    key,
				"path":   r.URL.Path,
				"method": r.Method,
			}).Warn("rate limit exceeded")
			w.Header().Set("Retry-After", "1")
			writeJSONError(w, http.StatusTooManyRequests, "Too many requests, slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}
