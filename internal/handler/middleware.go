package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"asha-portal/internal/token"
)

type contextKey string

const claimsContextKey contextKey = "auth_claims"

// ClaimsFromContext returns the verified token claims set by RequireAuth.
func ClaimsFromContext(ctx context.Context) (*token.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*token.Claims)
	return claims, ok
}

// RequireAuth verifies the bearer token and stores its claims in the request
// context. Expired tokens get a distinct message so clients can prompt for
// re-login instead of treating the token as tampered.
func RequireAuth(tokens *token.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := token.ExtractBearer(r.Header.Get("Authorization"))
			if !ok {
				writeAuthError(w, "Authentication required")
				return
			}

			claims, err := tokens.Verify(raw)
			if err != nil {
				if errors.Is(err, token.ErrExpiredToken) {
					writeAuthError(w, "Session expired. Please log in again.")
				} else {
					writeAuthError(w, "Invalid token")
				}
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IsAuthorized reports whether a role is in the allowed set. Pure policy;
// the middleware below is its request-boundary adapter.
func IsAuthorized(role string, allowedRoles ...string) bool {
	for _, allowed := range allowedRoles {
		if role == allowed {
			return true
		}
	}
	return false
}

// RequireRole rejects authenticated requests whose role is not allowed.
// Must run after RequireAuth.
func RequireRole(allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeAuthError(w, "Authentication required")
				return
			}
			if !IsAuthorized(claims.Role, allowedRoles...) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_ = json.NewEncoder(w).Encode(Response{
					Success: false,
					Message: "Access denied. Insufficient permissions.",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(Response{Success: false, Message: message})
}
