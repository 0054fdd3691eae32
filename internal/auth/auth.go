// Package auth provides bearer-token identity for the API. Session issuance
// (registration, login, refresh) lives with the identity provider; this
// service only validates access tokens and resolves the viewer behind a
// request, which may be "anonymous".
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/reelfeed/reelfeed/internal/httputil"
)

type contextKey string

const userIDKey contextKey = "userID"

type Identity struct {
	jwtSecret string
}

func New(jwtSecret string) *Identity {
	return &Identity{jwtSecret: jwtSecret}
}

// Middleware rejects requests without a valid access token.
func (i *Identity) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := i.viewerID(r)
		if userID == "" {
			httputil.WriteError(w, http.StatusUnauthorized, "authorization required")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalMiddleware resolves the viewer when a token is present but lets
// anonymous requests through with an empty viewer id.
func (i *Identity) OptionalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID := i.viewerID(r); userID != "" {
			r = r.WithContext(context.WithValue(r.Context(), userIDKey, userID))
		}
		next.ServeHTTP(w, r)
	})
}

func (i *Identity) viewerID(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	tokenStr, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found {
		return ""
	}
	claims, err := ValidateToken(i.jwtSecret, tokenStr)
	if err != nil || claims.TokenType != "access" {
		return ""
	}
	return claims.UserID
}

// ViewerIDFromToken validates a raw token string, for transports that carry
// the token outside an Authorization header (e.g. a WebSocket query param).
func (i *Identity) ViewerIDFromToken(tokenStr string) string {
	if tokenStr == "" {
		return ""
	}
	claims, err := ValidateToken(i.jwtSecret, tokenStr)
	if err != nil || claims.TokenType != "access" {
		return ""
	}
	return claims.UserID
}

func UserIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}
