package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sleads/portal/pkg/auth"
	"github.com/sleads/portal/pkg/files"
	"github.com/sleads/portal/pkg/httputil"
	"github.com/sleads/portal/pkg/middleware"
)

func (s *Server) registerFileRoutes(v1 *mux.Router) {
	resolver := s.memberResolver()
	asMember := middleware.RequireOrgRole(resolver, auth.OrgRoleMember)

	// Entry names are slash-delimited paths, so they travel as a query
	// parameter rather than a path segment.
	v1.Handle("/orgs/{org_id}/files", asMember(http.HandlerFunc(s.listFiles))).Methods("GET")
	v1.Handle("/orgs/{org_id}/files", asMember(http.HandlerFunc(s.createFile))).Methods("POST")
	v1.Handle("/orgs/{org_id}/files/entry", asMember(http.HandlerFunc(s.getFile))).Methods("GET")
	v1.Handle("/orgs/{org_id}/files/entry", asMember(http.HandlerFunc(s.updateFile))).Methods("PUT")
	v1.Handle("/orgs/{org_id}/files/entry", asMember(http.HandlerFunc(s.deleteFile))).Methods("DELETE")

	v1.Handle("/orgs/{org_id}/projects/{project_id}/files", asMember(http.HandlerFunc(s.listFiles))).Methods("GET")
	v1.Handle("/orgs/{org_id}/projects/{project_id}/files", asMember(http.HandlerFunc(s.createFile))).Methods("POST")
	v1.Handle("/orgs/{org_id}/projects/{project_id}/files/entry", asMember(http.HandlerFunc(s.getFile))).Methods("GET")
	v1.Handle("/orgs/{org_id}/projects/{project_id}/files/entry", asMember(http.HandlerFunc(s.updateFile))).Methods("PUT")
	v1.Handle("/orgs/{org_id}/projects/{project_id}/files/entry", asMember(http.HandlerFunc(s.deleteFile))).Methods("DELETE")
}

// fileScope derives the file bucket from the URL: the project bucket when
// a project id is present, the organization bucket otherwise.
func (s *Server) fileScope(w http.ResponseWriter, r *http.Request) (files.Scope, bool) {
	if _, hasProject := mux.Vars(r)["project_id"]; hasProject {
		project, ok := s.projectInOrg(w, r)
		if !ok {
			return files.Scope{}, false
		}
		return files.ProjectScope(project.ID), true
	}

	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return files.Scope{}, false
	}
	return files.OrgScope(orgID), true
}

func (s *Server) listFiles(w http.ResponseWriter, r *http.Request) {
	scope, ok := s.fileScope(w, r)
	if !ok {
		return
	}

	entries, err := s.deps.Files.ListEntries(scope)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}

type createFileRequest struct {
	Name          string            `json:"name"`
	ContentType   files.ContentType `json:"content_type"`
	Content       string            `json:"content,omitempty"`
	UserCanEdit   bool              `json:"user_can_edit"`
	UserCanDelete bool              `json:"user_can_delete"`
}

func (s *Server) createFile(w http.ResponseWriter, r *http.Request) {
	scope, ok := s.fileScope(w, r)
	if !ok {
		return
	}

	var req createFileRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	entry := &files.Entry{
		Name:          req.Name,
		ContentType:   req.ContentType,
		Content:       req.Content,
		UserCanEdit:   req.UserCanEdit,
		UserCanDelete: req.UserCanDelete,
	}
	if userID, ok := currentUserID(r); ok {
		entry.CreatedBy = &userID
	}

	if err := s.deps.Files.CreateEntry(scope, entry); err != nil {
		writeFileError(w, err)
		return
	}
	httputil.WriteCreated(w, entry)
}

func entryName(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := r.URL.Query().Get("name")
	if name == "" {
		httputil.WriteValidationError(w, "name is required")
		return "", false
	}
	return name, true
}

func (s *Server) getFile(w http.ResponseWriter, r *http.Request) {
	scope, ok := s.fileScope(w, r)
	if !ok {
		return
	}
	name, ok := entryName(w, r)
	if !ok {
		return
	}

	entry, err := s.deps.Files.GetEntry(scope, name)
	if err != nil {
		httputil.WriteNotFoundError(w, "entry not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry)
}

func (s *Server) updateFile(w http.ResponseWriter, r *http.Request) {
	scope, ok := s.fileScope(w, r)
	if !ok {
		return
	}
	name, ok := entryName(w, r)
	if !ok {
		return
	}

	var req files.UpdateEntryRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := s.deps.Files.UpdateEntry(scope, name, &req); err != nil {
		writeFileError(w, err)
		return
	}
	httputil.WriteSuccess(w, "entry updated")
}

func (s *Server) deleteFile(w http.ResponseWriter, r *http.Request) {
	scope, ok := s.fileScope(w, r)
	if !ok {
		return
	}
	name, ok := entryName(w, r)
	if !ok {
		return
	}

	if err := s.deps.Files.DeleteEntry(scope, name); err != nil {
		writeFileError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func writeFileError(w http.ResponseWriter, err error) {
	if errors.Is(err, files.ErrPermissionDenied) {
		httputil.WriteForbidden(w, err.Error())
		return
	}
	httputil.WriteBadRequest(w, err.Error())
}
