// Package middleware carries the HTTP cross-cutting concerns: JWT
// authentication, per-client rate limiting, request logging, metrics and
// CORS.
package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/openquant/tradehook/internal/errors"
	"github.com/openquant/tradehook/pkg/logger"
)

// Authenticator validates bearer tokens on management routes. The webhook,
// health and metrics endpoints stay open: the webhook authenticates with its
// own passphrase and the other two are infrastructure surfaces.
type Authenticator struct {
	secret    []byte
	ttl       time.Duration
	skipPaths map[string]struct{}
	log       *logger.Logger
}

// NewAuthenticator builds an authenticator around an HMAC signing secret.
// An empty secret disables authentication entirely.
func NewAuthenticator(secret string, ttl time.Duration, skipPaths []string, log *logger.Logger) *Authenticator {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}
	return &Authenticator{
		secret:    []byte(secret),
		ttl:       ttl,
		skipPaths: skip,
		log:       log,
	}
}

// Enabled reports whether a signing secret is configured.
func (a *Authenticator) Enabled() bool { return len(a.secret) > 0 }

// Issue signs a token for the subject with the configured TTL.
func (a *Authenticator) Issue(subject string) (string, time.Time, error) {
	if !a.Enabled() {
		return "", time.Time{}, fmt.Errorf("authentication is disabled")
	}

	now := time.Now()
	expiresAt := now.Add(a.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a signed token, returning its subject.
func (a *Authenticator) Verify(tokenString string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return "", fmt.Errorf("invalid token claims")
	}
	return claims.Subject, nil
}

// Middleware enforces bearer authentication on every route not in the skip
// list. With authentication disabled it passes requests through untouched.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Never trust a client-supplied subject header.
		r.Header.Del("X-Auth-Subject")

		if !a.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		if _, skip := a.skipPaths[r.URL.Path]; skip {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, errors.Unauthorized("missing bearer token"))
			return
		}

		subject, err := a.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			a.log.WithError(err).WithField("path", r.URL.Path).Debug("token rejected")
			writeError(w, errors.Unauthorized("invalid or expired token"))
			return
		}

		r.Header.Set("X-Auth-Subject", subject)
		next.ServeHTTP(w, r)
	})
}
