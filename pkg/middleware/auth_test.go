package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sleads/portal/pkg/auth"
	"github.com/sleads/portal/pkg/contextkeys"
)

type stubResolver struct {
	authCtx *auth.AuthContext
	err     error
}

func (s *stubResolver) ResolveToken(ctx context.Context, raw string) (*auth.AuthContext, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.authCtx, nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware(t *testing.T) {
	user := &auth.User{ID: 7, Role: auth.RoleUser}
	resolver := &stubResolver{authCtx: &auth.AuthContext{User: user}}

	t.Run("missing header returns 401", func(t *testing.T) {
		m := NewAuthMiddleware(resolver, false)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/orgs", nil)
		rec := httptest.NewRecorder()
		m.Handler(okHandler()).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing header allowed when optional", func(t *testing.T) {
		m := NewAuthMiddleware(resolver, true)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/orgs", nil)
		rec := httptest.NewRecorder()
		m.Handler(okHandler()).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("malformed header returns 401", func(t *testing.T) {
		m := NewAuthMiddleware(resolver, false)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/orgs", nil)
		req.Header.Set("Authorization", "token abc")
		rec := httptest.NewRecorder()
		m.Handler(okHandler()).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unresolvable token returns 401", func(t *testing.T) {
		m := NewAuthMiddleware(&stubResolver{err: auth.ErrUnauthorized}, false)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/orgs", nil)
		req.Header.Set("Authorization", "Bearer bad")
		rec := httptest.NewRecorder()
		m.Handler(okHandler()).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token injects auth context", func(t *testing.T) {
		m := NewAuthMiddleware(resolver, false)
		var seen *auth.AuthContext
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetAuthContext(r)
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/orgs", nil)
		req.Header.Set("Authorization", "Bearer good")
		rec := httptest.NewRecorder()
		m.Handler(handler).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotNil(t, seen)
		assert.Equal(t, int64(7), seen.User.ID)
	})
}

func TestRequireAuth(t *testing.T) {
	withIdentity := func(r *http.Request, role auth.Role) *http.Request {
		authCtx := &auth.AuthContext{User: &auth.User{ID: 1, Role: role}}
		return r.WithContext(contextkeys.WithAuth(r.Context(), authCtx))
	}

	t.Run("no identity returns 401", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/orgs", nil)
		rec := httptest.NewRecorder()
		RequireAuth(auth.RoleUser)(okHandler()).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong role returns 403", func(t *testing.T) {
		req := withIdentity(httptest.NewRequest(http.MethodGet, "/admin", nil), auth.RoleUser)
		rec := httptest.NewRecorder()
		RequireAuth(auth.RoleAdmin)(okHandler()).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin satisfies user role", func(t *testing.T) {
		req := withIdentity(httptest.NewRequest(http.MethodGet, "/api/v1/orgs", nil), auth.RoleAdmin)
		rec := httptest.NewRecorder()
		RequireAuth(auth.RoleUser)(okHandler()).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
