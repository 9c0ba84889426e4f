package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nimbusdb/controlplane/internal/api/request"
	"github.com/nimbusdb/controlplane/internal/api/response"
	"github.com/nimbusdb/controlplane/internal/core"
)

type AccessRule struct {
	svc      *core.AccessRuleService
	projects *core.ProjectService
}

func NewAccessRule(svc *core.AccessRuleService, projects *core.ProjectService) *AccessRule {
	return &AccessRule{svc: svc, projects: projects}
}

func (h *AccessRule) ListByProject(w http.ResponseWriter, r *http.Request) {
	project, ok := ownedProject(w, r, h.projects)
	if !ok {
		return
	}

	rules, err := h.svc.ListByProject(r.Context(), project.ID)
	if err != nil {
		serverError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, rules)
}

func (h *AccessRule) Create(w http.ResponseWriter, r *http.Request) {
	project, ok := ownedProject(w, r, h.projects)
	if !ok {
		return
	}

	var req request.CreateAccessRule
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	rule, err := h.svc.Create(r.Context(), project.ID, req.DBName, req.CIDR)
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The rule is registered but the engine has not picked it up yet; the
	// reconciler applies it on its next pass.
	response.WriteJSON(w, http.StatusAccepted, rule)
}

func (h *AccessRule) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		response.WriteError(w, http.StatusNotFound, "access rule not found")
		return
	}

	w.WriteHeader(http.StatusAccepted)
}
