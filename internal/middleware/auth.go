package middleware

import (
	"context"
	"net/http"
	"strings"

	"warimas-pos/internal/logger"
	"warimas-pos/internal/offlineauth"

	"go.uber.org/zap"
)

type contextKey string

const claimsKey contextKey = "offline_claims"

// TokenCookie carries the offline token for browser-based POS clients.
const TokenCookie = "offline_token"

// TokenParser verifies a bearer token.
type TokenParser func(token string) (*offlineauth.Claims, error)

// AuthMiddleware attaches the claims of a valid offline token to the request
// context. Requests without a token pass through anonymously; an
// invalid token is rejected with 401.
func AuthMiddleware(parse TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := parse(token)
			if err != nil {
				logger.FromCtx(r.Context()).Debug("rejected bearer token", zap.Error(err))
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken reads the offline token from its cookie, falling back to the
// Authorization header.
func extractToken(r *http.Request) string {
	if cookie, err := r.Cookie(TokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// ClaimsFrom returns the claims set by AuthMiddleware.
func ClaimsFrom(ctx context.Context) (*offlineauth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*offlineauth.Claims)
	return c, ok
}

// RequireUser rejects anonymous requests with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ClaimsFrom(r.Context()); !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
