package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/sleads/portal/pkg/auth"
	"github.com/sleads/portal/pkg/contextkeys"
	"github.com/sleads/portal/pkg/httputil"
)

// TokenResolver resolves a raw bearer token into an identity
type TokenResolver interface {
	ResolveToken(ctx context.Context, rawToken string) (*auth.AuthContext, error)
}

// AuthMiddleware resolves the request identity from the Authorization header
type AuthMiddleware struct {
	resolver TokenResolver
	optional bool // If true, allow requests without auth
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(resolver TokenResolver, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		resolver: resolver,
		optional: optional,
	}
}

// Handler wraps an HTTP handler with identity resolution
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Format: "Bearer <token>"
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "Unauthorized")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.WriteUnauthorized(w, "Unauthorized")
			return
		}

		authCtx, err := m.resolver.ResolveToken(r.Context(), parts[1])
		if err != nil {
			httputil.WriteUnauthorized(w, "Unauthorized")
			return
		}

		ctx := contextkeys.WithAuth(r.Context(), authCtx)
		ctx = contextkeys.WithUserID(ctx, strconv.FormatInt(authCtx.User.ID, 10))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAuthContext extracts auth context from request
func GetAuthContext(r *http.Request) *auth.AuthContext {
	ctx := r.Context().Value(contextkeys.AuthKey)
	if ctx == nil {
		return nil
	}
	authCtx, ok := ctx.(*auth.AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}

// RequireAuth creates middleware that requires a resolved identity with the
// given platform role. Missing identity yields 401, wrong role 403.
func RequireAuth(role auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := GetAuthContext(r)
			if authCtx == nil || authCtx.User == nil {
				httputil.WriteUnauthorized(w, "Unauthorized")
				return
			}

			if !authCtx.HasRole(role) {
				httputil.WriteForbidden(w, "insufficient role")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
