package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nimbusdb/controlplane/internal/api/request"
	"github.com/nimbusdb/controlplane/internal/api/response"
	"github.com/nimbusdb/controlplane/internal/core"
)

type Backup struct {
	svc      *core.BackupService
	projects *core.ProjectService
}

func NewBackup(svc *core.BackupService, projects *core.ProjectService) *Backup {
	return &Backup{svc: svc, projects: projects}
}

func (h *Backup) ListByProject(w http.ResponseWriter, r *http.Request) {
	project, ok := ownedProject(w, r, h.projects)
	if !ok {
		return
	}

	pg := request.ParsePagination(r)

	backups, hasMore, err := h.svc.ListByProject(r.Context(), project.ID, pg.Limit, pg.Cursor)
	if err != nil {
		serverError(w, r, err)
		return
	}

	var nextCursor string
	if hasMore && len(backups) > 0 {
		nextCursor = backups[len(backups)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, backups, nextCursor, hasMore)
}

func (h *Backup) DownloadURL(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	url, err := h.svc.SignedDownloadURL(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusNotFound, "backup not found")
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"url":        url,
		"expires_in": int(core.DownloadURLTTL.Seconds()),
	})
}

func (h *Backup) Restore(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.Restore(r.Context(), id); err != nil {
		serverError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}
