package auth

import (
	"context"
	"net/http"
)

// ContextKey is the key type for context values
type ContextKey string

// UserContextKey is the context key for the authenticated caller.
const UserContextKey ContextKey = "user"

// Middleware authenticates HTTP requests with bearer tokens.
type Middleware struct {
	jwtManager *JWTManager
	skipAuth   bool // For development/testing
}

// NewMiddleware creates authentication middleware.
func NewMiddleware(jwtManager *JWTManager, skipAuth bool) *Middleware {
	return &Middleware{jwtManager: jwtManager, skipAuth: skipAuth}
}

// HTTPMiddleware validates the Authorization header and attaches the caller
// to the request context.
func (m *Middleware) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipAuth {
			ctx := context.WithValue(r.Context(), UserContextKey, &UserContext{
				UserID:   "00000000-0000-0000-0000-000000000001",
				Username: "dev",
			})
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, `{"error":"authorization required"}`, http.StatusUnauthorized)
			return
		}

		token, err := ExtractBearerToken(authHeader)
		if err != nil {
			http.Error(w, `{"error":"invalid authorization header"}`, http.StatusUnauthorized)
			return
		}

		userCtx, err := m.jwtManager.ValidateToken(token)
		if err != nil {
			http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, userCtx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserFromContext returns the authenticated caller, if any.
func UserFromContext(ctx context.Context) (*UserContext, bool) {
	u, ok := ctx.Value(UserContextKey).(*UserContext)
	return u, ok
}
