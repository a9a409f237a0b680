package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/courseloom/marketplace/services"
)

type contextKey string

const identityContextKey contextKey = "identity"

// IdentityFromContext returns the authenticated caller set by Authenticator,
// or nil when the request never passed through it.
func IdentityFromContext(ctx context.Context) *services.Identity {
	identity, _ := ctx.Value(identityContextKey).(*services.Identity)
	return identity
}

func ContextWithIdentity(ctx context.Context, identity *services.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// Authenticator verifies the bearer token minted by the identity provider and
// stores the caller's subject in the request context. Requests without a
// valid token never reach the handler.
func Authenticator(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				writeError(w, http.StatusUnauthorized, services.ErrCodeUnauthorized, "Missing bearer token")
				return
			}

			claims := &jwt.RegisteredClaims{}
			parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !parsed.Valid || claims.Subject == "" {
				writeError(w, http.StatusUnauthorized, services.ErrCodeUnauthorized, "Invalid bearer token")
				return
			}

			ctx := ContextWithIdentity(r.Context(), &services.Identity{ClerkID: claims.Subject})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
