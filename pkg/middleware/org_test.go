package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"

	"github.com/sleads/portal/pkg/auth"
	"github.com/sleads/portal/pkg/contextkeys"
	"github.com/sleads/portal/pkg/orgs"
)

type stubMembers struct {
	members map[string]*orgs.Member
}

func (s *stubMembers) GetMember(orgID, userID int64) (*orgs.Member, error) {
	m, ok := s.members[fmt.Sprintf("%d:%d", orgID, userID)]
	if !ok {
		return nil, fmt.Errorf("member not found")
	}
	return m, nil
}

func orgRequest(t *testing.T, target string, role auth.Role, userID int64) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	authCtx := &auth.AuthContext{User: &auth.User{ID: userID, Role: role}}
	return req.WithContext(contextkeys.WithAuth(req.Context(), authCtx))
}

func serveWithVars(handler http.Handler, req *http.Request, pattern string) *httptest.ResponseRecorder {
	router := mux.NewRouter()
	router.Handle(pattern, handler)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRequireOrgRole(t *testing.T) {
	resolver := &stubMembers{members: map[string]*orgs.Member{
		"5:1": {OrganizationID: 5, UserID: 1, Role: auth.OrgRoleMember},
		"5:2": {OrganizationID: 5, UserID: 2, Role: auth.OrgRoleAdmin},
	}}

	t.Run("no identity returns 401", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/orgs/5/projects", nil)
		rec := serveWithVars(RequireOrgRole(resolver, auth.OrgRoleMember)(okHandler()), req, "/orgs/{org_id}/projects")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing org id returns 403", func(t *testing.T) {
		req := orgRequest(t, "/projects", auth.RoleUser, 1)
		rec := serveWithVars(RequireOrgRole(resolver, auth.OrgRoleMember)(okHandler()), req, "/projects")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("non-member returns 403", func(t *testing.T) {
		req := orgRequest(t, "/orgs/5/projects", auth.RoleUser, 99)
		rec := serveWithVars(RequireOrgRole(resolver, auth.OrgRoleMember)(okHandler()), req, "/orgs/{org_id}/projects")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("insufficient role returns 403", func(t *testing.T) {
		req := orgRequest(t, "/orgs/5/projects", auth.RoleUser, 1)
		rec := serveWithVars(RequireOrgRole(resolver, auth.OrgRoleAdmin)(okHandler()), req, "/orgs/{org_id}/projects")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("sufficient role passes and injects member", func(t *testing.T) {
		var seen *orgs.Member
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetMember(r)
			w.WriteHeader(http.StatusOK)
		})

		req := orgRequest(t, "/orgs/5/projects", auth.RoleUser, 2)
		rec := serveWithVars(RequireOrgRole(resolver, auth.OrgRoleMember)(handler), req, "/orgs/{org_id}/projects")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotNil(t, seen)
		assert.Equal(t, auth.OrgRoleAdmin, seen.Role)
	})

	t.Run("platform admin bypasses membership", func(t *testing.T) {
		req := orgRequest(t, "/orgs/5/projects", auth.RoleAdmin, 42)
		rec := serveWithVars(RequireOrgRole(resolver, auth.OrgRoleOwner)(okHandler()), req, "/orgs/{org_id}/projects")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRequireOrgRoleOrPlatform(t *testing.T) {
	resolver := &stubMembers{members: map[string]*orgs.Member{
		"5:1": {OrganizationID: 5, UserID: 1, Role: auth.OrgRoleMember},
	}}
	mw := RequireOrgRoleOrPlatform(resolver, auth.OrgRoleMember, auth.RoleUser)

	t.Run("with org id checks membership", func(t *testing.T) {
		req := orgRequest(t, "/quotes?org_id=5", auth.RoleUser, 99)
		rec := serveWithVars(mw(okHandler()), req, "/quotes")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("without org id falls back to platform role", func(t *testing.T) {
		req := orgRequest(t, "/quotes", auth.RoleUser, 99)
		rec := serveWithVars(mw(okHandler()), req, "/quotes")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("without identity still 401", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/quotes", nil)
		rec := serveWithVars(mw(okHandler()), req, "/quotes")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
