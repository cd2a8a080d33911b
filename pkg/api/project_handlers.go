package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sleads/portal/pkg/auth"
	"github.com/sleads/portal/pkg/httputil"
	"github.com/sleads/portal/pkg/middleware"
	"github.com/sleads/portal/pkg/projects"
)

func (s *Server) registerProjectRoutes(v1 *mux.Router) {
	resolver := s.memberResolver()
	asMember := middleware.RequireOrgRole(resolver, auth.OrgRoleMember)
	asAdmin := middleware.RequireOrgRole(resolver, auth.OrgRoleAdmin)

	// Flat listing: ?org_id=N scopes to one organization (membership
	// required); omitting it lists every project, platform admins only.
	asMemberOrPlatform := middleware.RequireOrgRoleOrPlatform(resolver, auth.OrgRoleMember, auth.RoleAdmin)
	v1.Handle("/projects", asMemberOrPlatform(http.HandlerFunc(s.searchProjects))).Methods("GET")

	v1.Handle("/orgs/{org_id}/projects", asAdmin(http.HandlerFunc(s.createProject))).Methods("POST")
	v1.Handle("/orgs/{org_id}/projects", asMember(http.HandlerFunc(s.listProjects))).Methods("GET")
	v1.Handle("/orgs/{org_id}/projects/{project_id}", asMember(http.HandlerFunc(s.getProject))).Methods("GET")
	v1.Handle("/orgs/{org_id}/projects/{project_id}", asAdmin(http.HandlerFunc(s.updateProject))).Methods("PUT")
	v1.Handle("/orgs/{org_id}/projects/{project_id}", asAdmin(http.HandlerFunc(s.deleteProject))).Methods("DELETE")
	v1.Handle("/orgs/{org_id}/projects/{project_id}/listening-mode", asAdmin(http.HandlerFunc(s.setListeningMode))).Methods("PUT")
}

type createProjectRequest struct {
	Name   string `json:"name"`
	Domain string `json:"domain,omitempty"`
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return
	}

	var req createProjectRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	project := &projects.Project{OrganizationID: orgID, Name: req.Name, Domain: req.Domain}
	if err := s.deps.Projects.CreateProject(project); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteCreated(w, project)
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return
	}

	list, err := s.deps.Projects.ListProjects(orgID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

// searchProjects lists projects for the organization named by the org_id
// query parameter, or across all organizations when it is absent. The
// middleware has already checked membership (with org_id) or the platform
// admin role (without).
func (s *Server) searchProjects(w http.ResponseWriter, r *http.Request) {
	orgID, err := httputil.ParseQueryInt64(r, "org_id", 0)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	var list []*projects.Project
	if orgID != 0 {
		list, err = s.deps.Projects.ListProjects(orgID)
	} else {
		list, err = s.deps.Projects.ListAllProjects()
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

// projectInOrg loads a project and verifies it belongs to the org in the
// URL, so membership of one organization never grants access to another's
// projects.
func (s *Server) projectInOrg(w http.ResponseWriter, r *http.Request) (*projects.Project, bool) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return nil, false
	}
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "project_id")
	if !ok {
		return nil, false
	}

	project, err := s.deps.Projects.GetProject(projectID)
	if err != nil || project.OrganizationID != orgID {
		httputil.WriteNotFoundError(w, "project not found")
		return nil, false
	}
	return project, true
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	project, ok := s.projectInOrg(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, project)
}

func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	project, ok := s.projectInOrg(w, r)
	if !ok {
		return
	}

	var req projects.UpdateProjectRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := s.deps.Projects.UpdateProject(project.ID, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	httputil.WriteSuccess(w, "project updated")
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	project, ok := s.projectInOrg(w, r)
	if !ok {
		return
	}

	if err := s.deps.Projects.DeleteProject(project.ID); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	httputil.WriteNoContent(w)
}

type listeningModeRequest struct {
	ListeningMode bool `json:"listening_mode"`
}

func (s *Server) setListeningMode(w http.ResponseWriter, r *http.Request) {
	project, ok := s.projectInOrg(w, r)
	if !ok {
		return
	}

	var req listeningModeRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := s.deps.Projects.SetListeningMode(project.ID, req.ListeningMode); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	httputil.WriteSuccess(w, "listening mode updated")
}
