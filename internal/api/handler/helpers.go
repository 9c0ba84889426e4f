package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	mw "github.com/nimbusdb/controlplane/internal/api/middleware"
	"github.com/nimbusdb/controlplane/internal/api/request"
	"github.com/nimbusdb/controlplane/internal/api/response"
	"github.com/nimbusdb/controlplane/internal/core"
	"github.com/nimbusdb/controlplane/internal/model"
)

// serverError logs the failure and answers with a fixed message. Engine and
// registry errors carry hostnames and SQL fragments that must not reach
// tenants.
func serverError(w http.ResponseWriter, r *http.Request, err error) {
	zerolog.Ctx(r.Context()).Error().Err(err).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg("request failed")
	response.WriteError(w, http.StatusInternalServerError, "internal server error")
}

// ownedProject loads the project from the {id} URL parameter and verifies it
// belongs to the calling owner. A project owned by someone else reads as not
// found. It writes the error response itself and reports success in the bool.
func ownedProject(w http.ResponseWriter, r *http.Request, projects *core.ProjectService) (*model.Project, bool) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	project, err := projects.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusNotFound, "project not found")
		return nil, false
	}
	if project.OwnerID != mw.OwnerID(r.Context()) {
		response.WriteError(w, http.StatusNotFound, "project not found")
		return nil, false
	}
	return project, true
}
