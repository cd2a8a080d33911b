package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sleads/portal/pkg/auth"
	"github.com/sleads/portal/pkg/cms"
	"github.com/sleads/portal/pkg/httputil"
	"github.com/sleads/portal/pkg/middleware"
)

func (s *Server) registerCMSAdminRoutes(v1 *mux.Router) {
	resolver := s.memberResolver()
	asMember := middleware.RequireOrgRole(resolver, auth.OrgRoleMember)
	asAdmin := middleware.RequireOrgRole(resolver, auth.OrgRoleAdmin)

	base := "/orgs/{org_id}/projects/{project_id}/cms"
	v1.Handle(base+"/pages", asMember(http.HandlerFunc(s.listPages))).Methods("GET")
	v1.Handle(base+"/pages/{page_id}", asMember(http.HandlerFunc(s.getPageContent))).Methods("GET")
	v1.Handle(base+"/pages/{page_id}", asAdmin(http.HandlerFunc(s.deletePage))).Methods("DELETE")
	v1.Handle(base+"/pages/{page_id}/values", asMember(http.HandlerFunc(s.saveFieldValues))).Methods("PUT")

	v1.Handle(base+"/splits", asMember(http.HandlerFunc(s.listSplits))).Methods("GET")
	v1.Handle(base+"/splits", asAdmin(http.HandlerFunc(s.createSplit))).Methods("POST")
	v1.Handle(base+"/splits/{split_id}", asAdmin(http.HandlerFunc(s.deleteSplit))).Methods("DELETE")

	v1.Handle(base+"/languages", asAdmin(http.HandlerFunc(s.setProjectLanguages))).Methods("PUT")
}

// pageInProject loads a page and verifies the full org/project/page chain
func (s *Server) pageInProject(w http.ResponseWriter, r *http.Request) (*cms.Page, bool) {
	project, ok := s.projectInOrg(w, r)
	if !ok {
		return nil, false
	}
	pageID, ok := httputil.ParsePathInt64OrError(w, r, "page_id")
	if !ok {
		return nil, false
	}

	page, err := s.deps.CMS.GetPage(pageID)
	if err != nil || page.ProjectID != project.ID {
		httputil.WriteNotFoundError(w, "page not found")
		return nil, false
	}
	return page, true
}

func (s *Server) listPages(w http.ResponseWriter, r *http.Request) {
	project, ok := s.projectInOrg(w, r)
	if !ok {
		return
	}

	pages, err := s.deps.CMS.ListPages(project.ID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pages)
}

// getPageContent returns the page's resolved content; ?splitId= selects a
// variant
func (s *Server) getPageContent(w http.ResponseWriter, r *http.Request) {
	page, ok := s.pageInProject(w, r)
	if !ok {
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

	resolved, err := s.deps.CMS.ResolveFieldValues(page.ID, splitID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"page":   page,
		"fields": resolved,
	})
}

func (s *Server) deletePage(w http.ResponseWriter, r *http.Request) {
	page, ok := s.pageInProject(w, r)
	if !ok {
		return
	}

	if err := s.deps.CMS.DeletePage(page.ID); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	httputil.WriteNoContent(w)
}

type saveFieldValuesRequest struct {
	SplitID *int64                       `json:"split_id,omitempty"`
	Values  map[int64]map[string]*string `json:"values"`
}

// saveFieldValues writes submitted language values; with a split id only
// the differences from the defaults are stored
func (s *Server) saveFieldValues(w http.ResponseWriter, r *http.Request) {
	page, ok := s.pageInProject(w, r)
	if !ok {
		return
	}

	var req saveFieldValuesRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.Values) == 0 {
		httputil.WriteValidationError(w, "values are required")
		return
	}

	if err := s.deps.CMS.SaveFieldValues(page.ID, req.SplitID, req.Values); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	httputil.WriteSuccess(w, "values saved")
}

func (s *Server) listSplits(w http.ResponseWriter, r *http.Request) {
	project, ok := s.projectInOrg(w, r)
	if !ok {
		return
	}

	splits, err := s.deps.CMS.ListSplits(project.ID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, splits)
}

type createSplitRequest struct {
	Name string `json:"name"`
}

func (s *Server) createSplit(w http.ResponseWriter, r *http.Request) {
	project, ok := s.projectInOrg(w, r)
	if !ok {
		return
	}

	var req createSplitRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	split := &cms.Split{ProjectID: project.ID, Name: req.Name}
	if err := s.deps.CMS.CreateSplit(split); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteCreated(w, split)
}

func (s *Server) deleteSplit(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.projectInOrg(w, r); !ok {
		return
	}
	splitID, ok := httputil.ParsePathInt64OrError(w, r, "split_id")
	if !ok {
		return
	}

	if err := s.deps.CMS.DeleteSplit(splitID); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	httputil.WriteNoContent(w)
}

type setLanguagesRequest struct {
	Languages []string `json:"languages"`
}

func (s *Server) setProjectLanguages(w http.ResponseWriter, r *http.Request) {
	project, ok := s.projectInOrg(w, r)
	if !ok {
		return
	}

	var req setLanguagesRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.Languages) == 0 {
		httputil.WriteValidationError(w, "languages are required")
		return
	}

	if err := s.deps.CMS.SetLanguages(project.ID, req.Languages); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	httputil.WriteSuccess(w, "languages updated")
}
