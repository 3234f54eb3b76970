// Package auth gates the admin read API behind a single service-to-service
// bearer token, verified as a JWT signed with JWT_SECRET. There is no
// per-user login flow and no role system: this surface has exactly one
// audience (the operator tooling hitting the admin API), so the teacher's
// original multi-user/role provider is replaced by one static credential
// check.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vigilfeed/vigilfeed/internal/handler/http/respond"
)

type ctxKey string

const ctxUser ctxKey = "user"

var publicEndpoints = []string{"/health", "/ready", "/live", "/metrics", "/swagger/"}

// IsPublicEndpoint reports whether path is reachable without a bearer token.
func IsPublicEndpoint(path string) bool {
	for _, endpoint := range publicEndpoints {
		if strings.HasPrefix(path, endpoint) {
			return true
		}
	}
	return false
}

// ValidateServiceToken checks SERVICE_TOKEN at startup so the server never
// comes up with an empty or guessable credential.
func ValidateServiceToken() error {
	token := os.Getenv("SERVICE_TOKEN")
	if token == "" {
		return errors.New("SERVICE_TOKEN must be set")
	}
	if len(token) < 32 {
		return errors.New("SERVICE_TOKEN must be at least 32 characters (256 bits)")
	}
	weak := []string{"secret", "password", "test", "admin", "default", "servicetoken"}
	for _, w := range weak {
		if strings.EqualFold(token, w) {
			return fmt.Errorf("SERVICE_TOKEN must not be a common weak value: %s", w)
		}
	}
	return nil
}

// IssueServiceToken signs a JWT bound to the single "service" audience this
// API recognizes. Operators mint it once (e.g. via a one-off CLI run) and
// configure the caller with the resulting token; there is no login endpoint.
func IssueServiceToken() (string, error) {
	secret := []byte(os.Getenv("JWT_SECRET"))
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "service",
		"aud": "vigilfeed-admin",
		"iat": time.Now().Unix(),
	})
	return token.SignedString(secret)
}

// Authz requires a valid service-audience bearer token on every method for
// any endpoint not in IsPublicEndpoint. Unlike the teacher's role matrix,
// there is only one audience here, so a valid token grants full access.
func Authz(next http.Handler) http.Handler {
	secret := []byte(os.Getenv("JWT_SECRET"))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IsPublicEndpoint(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		sub, err := validateJWT(r.Header.Get("Authorization"), secret)
		if err != nil {
			respond.SafeError(w, http.StatusUnauthorized, fmt.Errorf("unauthorized: %w", err))
			return
		}

		ctx := context.WithValue(r.Context(), ctxUser, sub)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func validateJWT(authz string, secret []byte) (string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return "", errors.New("missing bearer token")
	}
	tokenString := strings.TrimPrefix(authz, prefix)

	tok, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil || !tok.Valid {
		return "", errors.New("invalid token")
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}
	aud, _ := claims["aud"].(string)
	if subtle.ConstantTimeCompare([]byte(aud), []byte("vigilfeed-admin")) != 1 {
		return "", errors.New("wrong audience")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", errors.New("invalid sub claim")
	}
	return sub, nil
}

// UserFromContext returns the authenticated subject stored by Authz, if any.
func UserFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxUser).(string)
	return v, ok
}
