package handler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	mw "github.com/nimbusdb/controlplane/internal/api/middleware"
	"github.com/nimbusdb/controlplane/internal/api/request"
	"github.com/nimbusdb/controlplane/internal/api/response"
	"github.com/nimbusdb/controlplane/internal/core"
	"github.com/nimbusdb/controlplane/internal/model"
)

// UsageReader reports live statistics for the databases owned by a role.
type UsageReader interface {
	ListManagedDatabases(ctx context.Context, ownerPattern string) ([]model.DatabaseUsage, error)
}

type Project struct {
	svc   *core.ProjectService
	usage UsageReader
}

func NewProject(svc *core.ProjectService, usage UsageReader) *Project {
	return &Project{svc: svc, usage: usage}
}

func (h *Project) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateProject
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	project, err := h.svc.Create(r.Context(), mw.OwnerID(r.Context()), mw.OwnerEmail(r.Context()), req.Title, req.Description)
	if err != nil {
		serverError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, projectDetail{
		Project:    project,
		Connection: h.connection(r, project),
	})
}

func (h *Project) List(w http.ResponseWriter, r *http.Request) {
	pg := request.ParsePagination(r)

	projects, hasMore, err := h.svc.ListByOwner(r.Context(), mw.OwnerID(r.Context()), pg.Limit, pg.Cursor)
	if err != nil {
		serverError(w, r, err)
		return
	}

	var nextCursor string
	if hasMore && len(projects) > 0 {
		nextCursor = projects[len(projects)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, projects, nextCursor, hasMore)
}

// projectDetail is a project plus the material the list endpoint leaves out:
// live usage counters and the connection credential.
type projectDetail struct {
	*model.Project
	Databases  []model.DatabaseUsage `json:"databases,omitempty"`
	Connection *core.Connection      `json:"connection,omitempty"`
}

// connection opens the project's sealed credential. A vault failure degrades
// the response instead of failing it; the rest of the project stays readable.
func (h *Project) connection(r *http.Request, project *model.Project) *core.Connection {
	conn, err := h.svc.Connection(project)
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).
			Str("project_id", project.ID).
			Msg("failed to open project credential")
		return nil
	}
	return conn
}

func (h *Project) Get(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	detail := projectDetail{Project: project, Connection: h.connection(r, project)}

	// Usage comes from the live engine; a telemetry outage should not make
	// the project itself unreadable.
	usage, err := h.usage.ListManagedDatabases(r.Context(), project.DBRole)
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).
			Str("project_id", project.ID).
			Msg("failed to read database usage")
	} else {
		detail.Databases = usage
	}

	response.WriteJSON(w, http.StatusOK, detail)
}

func (h *Project) Resume(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	if err := h.svc.Resume(r.Context(), project.ID); err != nil {
		response.WriteError(w, http.StatusConflict, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Project) Update(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	var req request.UpdateProject
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.UpdateDescription(r.Context(), project.ID, req.Description); err != nil {
		serverError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Project) ownedProject(w http.ResponseWriter, r *http.Request) (*model.Project, bool) {
	return ownedProject(w, r, h.svc)
}
