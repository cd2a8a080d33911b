package api

import (
	"net/http"

	"github.com/sleads/portal/pkg/cms"
	"github.com/sleads/portal/pkg/httputil"
)

// getListeningMode tells a client site whether the project accepts page
// registrations
func (s *Server) getListeningMode(w http.ResponseWriter, r *http.Request) {
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "projectId")
	if !ok {
		return
	}

	project, err := s.deps.Projects.GetProject(projectID)
	if err != nil {
		httputil.WriteNotFoundError(w, "project not found")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"listeningMode": project.ListeningMode})
}

type registerPageRequest struct {
	CMSKey string `json:"cms_key"`
	cms.RegisterPageRequest
}

// registerPage lets a client site in listening mode declare its pages and
// fields, authenticated by the per-project CMS key
func (s *Server) registerPage(w http.ResponseWriter, r *http.Request) {
	var req registerPageRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.CMSKey, "cms_key") {
		return
	}

	project, err := s.deps.Projects.GetProjectByCMSKey(req.CMSKey)
	if err != nil {
		httputil.WriteUnauthorized(w, "invalid cms key")
		return
	}
	if !project.ListeningMode {
		httputil.WriteForbidden(w, "project is not in listening mode")
		return
	}

	page, err := s.deps.CMS.RegisterPage(project.ID, &req.RegisterPageRequest)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

// getFields returns the resolved content of a page, with an optional
// split's overrides applied
func (s *Server) getFields(w http.ResponseWriter, r *http.Request) {
	projectID, err := httputil.ParseQueryInt64(r, "projectId", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	pageID, err := httputil.ParseQueryInt64(r, "pageId", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if !httputil.RequirePositive(w, projectID, "projectId") || !httputil.RequirePositive(w, pageID, "pageId") {
		return
	}

	var splitID *int64
	if raw := r.URL.Query().Get("splitId"); raw != "" {
		id, err := httputil.ParseQueryInt64(r, "splitId", 0)
		if err != nil {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		splitID = &id
	}

	page, err := s.deps.CMS.GetPage(pageID)
	if err != nil {
		httputil.WriteNotFoundError(w, "page not found")
		return
	}
	if page.ProjectID != projectID {
		httputil.WriteNotFoundError(w, "page not found")
		return
	}

	resolved, err := s.deps.CMS.ResolveFieldValues(pageID, splitID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"fields": resolved})
}

// getLanguages returns the language codes configured for a project
func (s *Server) getLanguages(w http.ResponseWriter, r *http.Request) {
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "projectId")
	if !ok {
		return
	}

	langs, err := s.deps.CMS.ListLanguages(projectID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if langs == nil {
		langs = []string{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string][]string{"languages": langs})
}
