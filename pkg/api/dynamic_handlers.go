package api

import (
	"net/http"

	"github.com/sleads/portal/pkg/dynamic"
	"github.com/sleads/portal/pkg/httputil"
)

func (s *Server) getSchema(w http.ResponseWriter, r *http.Request) {
	tables, err := s.deps.Dynamic.GetSchema()
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if tables == nil {
		tables = []*dynamic.TableSchema{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"tables": tables})
}

func (s *Server) listDynamicObjects(w http.ResponseWriter, r *http.Request) {
	table, ok := httputil.ParsePathStringOrError(w, r, "table")
	if !ok {
		return
	}

	cursor, err := httputil.ParseQueryInt64(r, "cursor", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	numItems, err := httputil.ParseQueryInt(r, "numItems", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	page, err := s.deps.Dynamic.ListObjects(table, cursor, numItems)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

func (s *Server) getDynamicObject(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	obj, err := s.deps.Dynamic.GetObject(id)
	if err != nil {
		httputil.WriteNotFoundError(w, "object not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, obj)
}

func (s *Server) createDynamicObject(w http.ResponseWriter, r *http.Request) {
	table, ok := httputil.ParsePathStringOrError(w, r, "table")
	if !ok {
		return
	}

	var data map[string]interface{}
	if !httputil.ParseJSONOrError(w, r, &data) {
		return
	}
	if len(data) == 0 {
		httputil.WriteValidationError(w, "object data is required")
		return
	}

	obj, err := s.deps.Dynamic.CreateObject(table, data)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	httputil.WriteCreated(w, obj)
}

func (s *Server) updateDynamicObject(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var data map[string]interface{}
	if !httputil.ParseJSONOrError(w, r, &data) {
		return
	}
	if len(data) == 0 {
		httputil.WriteValidationError(w, "object data is required")
		return
	}

	obj, err := s.deps.Dynamic.UpdateObject(id, data)
	if err != nil {
		httputil.WriteNotFoundError(w, "object not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, obj)
}

func (s *Server) deleteDynamicObject(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := s.deps.Dynamic.DeleteObject(id); err != nil {
		httputil.WriteNotFoundError(w, "object not found")
		return
	}
	httputil.WriteNoContent(w)
}
