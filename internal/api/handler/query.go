package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nimbusdb/controlplane/internal/api/request"
	"github.com/nimbusdb/controlplane/internal/api/response"
	"github.com/nimbusdb/controlplane/internal/core"
	"github.com/nimbusdb/controlplane/internal/querybuilder"
)

type Query struct {
	svc      *core.QueryService
	projects *core.ProjectService
}

func NewQuery(svc *core.QueryService, projects *core.ProjectService) *Query {
	return &Query{svc: svc, projects: projects}
}

func (h *Query) Search(w http.ResponseWriter, r *http.Request) {
	project, ok := ownedProject(w, r, h.projects)
	if !ok {
		return
	}
	dbName := chi.URLParam(r, "db")

	var req request.Search
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.svc.Search(r.Context(), project.ID, dbName, req.Table, req.Predicates)
	if err != nil {
		writeQueryError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, result)
}

func (h *Query) Tables(w http.ResponseWriter, r *http.Request) {
	project, ok := ownedProject(w, r, h.projects)
	if !ok {
		return
	}
	dbName := chi.URLParam(r, "db")

	tables, err := h.svc.ListTables(r.Context(), project.ID, dbName)
	if err != nil {
		writeQueryError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

func (h *Query) TableContent(w http.ResponseWriter, r *http.Request) {
	project, ok := ownedProject(w, r, h.projects)
	if !ok {
		return
	}
	dbName := chi.URLParam(r, "db")
	table := chi.URLParam(r, "table")

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	content, err := h.svc.TableContent(r.Context(), project.ID, dbName, table, page, limit)
	if err != nil {
		writeQueryError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, content)
}

func (h *Query) DeleteRows(w http.ResponseWriter, r *http.Request) {
	project, ok := ownedProject(w, r, h.projects)
	if !ok {
		return
	}
	dbName := chi.URLParam(r, "db")

	var req request.DeleteRows
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	affected, err := h.svc.DeleteRows(r.Context(), project.ID, dbName, req.Table, req.PKColumn, req.PKValues)
	if err != nil {
		writeQueryError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]int64{"rows_affected": affected})
}

func (h *Query) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	project, ok := ownedProject(w, r, h.projects)
	if !ok {
		return
	}
	dbName := chi.URLParam(r, "db")

	var req request.BulkUpdate
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	affected, err := h.svc.BulkUpdate(r.Context(), project.ID, dbName, req.Table, req.PKColumn, req.Updates)
	if err != nil {
		writeQueryError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]int64{"rows_affected": affected})
}

// writeQueryError maps query-path errors to HTTP responses. A request the
// builder refuses is the caller's fault and keeps its message; everything
// else is ours and stays out of the body.
func writeQueryError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, querybuilder.ErrInvalidQuery) {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	serverError(w, r, err)
}
