package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sleads/portal/pkg/auth"
	"github.com/sleads/portal/pkg/httputil"
	"github.com/sleads/portal/pkg/middleware"
	"github.com/sleads/portal/pkg/orgs"
)

func (s *Server) registerOrgRoutes(v1 *mux.Router) {
	resolver := s.memberResolver()
	asMember := middleware.RequireOrgRole(resolver, auth.OrgRoleMember)
	asAdmin := middleware.RequireOrgRole(resolver, auth.OrgRoleAdmin)
	asOwner := middleware.RequireOrgRole(resolver, auth.OrgRoleOwner)

	v1.HandleFunc("/orgs", s.createOrg).Methods("POST")
	v1.HandleFunc("/orgs", s.listOrgs).Methods("GET")
	v1.Handle("/orgs/{org_id}", asMember(http.HandlerFunc(s.getOrg))).Methods("GET")
	v1.Handle("/orgs/{org_id}", asAdmin(http.HandlerFunc(s.updateOrg))).Methods("PUT")
	v1.Handle("/orgs/{org_id}", asOwner(http.HandlerFunc(s.deleteOrg))).Methods("DELETE")

	v1.Handle("/orgs/{org_id}/members", asMember(http.HandlerFunc(s.listMembers))).Methods("GET")
	v1.Handle("/orgs/{org_id}/members/{user_id}", asAdmin(http.HandlerFunc(s.updateMemberRole))).Methods("PUT")
	v1.Handle("/orgs/{org_id}/members/{user_id}", asAdmin(http.HandlerFunc(s.removeMember))).Methods("DELETE")

	v1.Handle("/orgs/{org_id}/invitations", asAdmin(http.HandlerFunc(s.createInvitation))).Methods("POST")
	v1.Handle("/orgs/{org_id}/invitations", asAdmin(http.HandlerFunc(s.listInvitations))).Methods("GET")
	v1.Handle("/orgs/{org_id}/invitations/{id}", asAdmin(http.HandlerFunc(s.revokeInvitation))).Methods("DELETE")

	v1.HandleFunc("/invitations/accept", s.acceptInvitation).Methods("POST")
}

func currentUserID(r *http.Request) (int64, bool) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil || authCtx.User == nil {
		return 0, false
	}
	return authCtx.User.ID, true
}

// createOrg creates an organization; the creator becomes its owner
func (s *Server) createOrg(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		httputil.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req orgs.CreateOrgRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	org := &orgs.Organization{Name: req.Name, OwnerID: &userID, Settings: req.Settings}
	if err := s.deps.Orgs.CreateOrganization(org); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if err := s.deps.Orgs.AddMember(org.ID, userID, auth.OrgRoleOwner, nil); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteCreated(w, org)
}

// listOrgs lists the organizations the caller belongs to
func (s *Server) listOrgs(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		httputil.WriteUnauthorized(w, "Unauthorized")
		return
	}

	list, err := s.deps.Orgs.ListOrganizations(userID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (s *Server) getOrg(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return
	}

	org, err := s.deps.Orgs.GetOrganization(orgID)
	if err != nil {
		httputil.WriteNotFoundError(w, "organization not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, org)
}

func (s *Server) updateOrg(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return
	}

	var req orgs.UpdateOrgRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := s.deps.Orgs.UpdateOrganization(orgID, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	httputil.WriteSuccess(w, "organization updated")
}

func (s *Server) deleteOrg(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return
	}

	if err := s.deps.Orgs.DeleteOrganization(orgID); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return
	}

	members, err := s.deps.Orgs.ListMembers(orgID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, members)
}

func (s *Server) updateMemberRole(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	var req orgs.UpdateMemberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !req.Role.Valid() {
		httputil.WriteValidationError(w, "invalid role")
		return
	}

	if err := s.deps.Orgs.UpdateMemberRole(orgID, userID, req.Role); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	httputil.WriteSuccess(w, "member updated")
}

func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	if err := s.deps.Orgs.RemoveMember(orgID, userID); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	httputil.WriteNoContent(w)
}

// createInvitation invites an email address into the organization and
// enqueues the invitation email
func (s *Server) createInvitation(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return
	}
	userID, ok := currentUserID(r)
	if !ok {
		httputil.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req orgs.InviteMemberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Email, "email") {
		return
	}
	if !req.Role.Valid() {
		httputil.WriteValidationError(w, "invalid role")
		return
	}

	invitation := &orgs.Invitation{
		OrgID:     orgID,
		Email:     req.Email,
		Role:      req.Role,
		InvitedBy: userID,
	}
	if err := s.deps.Orgs.CreateInvitation(invitation); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	if s.deps.Queue != nil {
		_, err := s.deps.Queue.Enqueue(r.Context(), "invitation_email", map[string]interface{}{
			"email":  invitation.Email,
			"token":  invitation.Token,
			"org_id": orgID,
		}, 0)
		if err != nil && s.deps.Logger != nil {
			s.deps.Logger.WithError(err).WithField("org_id", orgID).Warn("failed to enqueue invitation email")
		}
	}

	httputil.WriteCreated(w, invitation)
}

func (s *Server) listInvitations(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return
	}

	invitations, err := s.deps.Orgs.ListInvitations(orgID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, invitations)
}

func (s *Server) revokeInvitation(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := s.deps.Orgs.RevokeInvitation(id); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	httputil.WriteNoContent(w)
}

type acceptInvitationRequest struct {
	Token string `json:"token"`
}

// acceptInvitation redeems an invitation token for the caller
func (s *Server) acceptInvitation(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		httputil.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req acceptInvitationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Token, "token") {
		return
	}

	if err := s.deps.Orgs.AcceptInvitation(req.Token, userID); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	httputil.WriteSuccess(w, "invitation accepted")
}
