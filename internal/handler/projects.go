package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ups-sales/api/internal/database"
	"github.com/ups-sales/api/internal/project"
	"github.com/ups-sales/api/internal/sales"
	"go.uber.org/zap"
)

// ProjectServicer defines the Gantt operations used by project handlers.
// Satisfied by *project.Service.
type ProjectServicer interface {
	Gantt(ctx context.Context, projectID uuid.UUID) ([]project.Row, error)
	SetDates(ctx context.Context, taskID uuid.UUID, start, deadline *time.Time) (database.ProjectTask, error)
}

// ProjectHandler serves the project Gantt view.
type ProjectHandler struct {
	svc    ProjectServicer
	logger *zap.Logger
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(svc ProjectServicer, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers Gantt endpoints on the root router.
func (h *ProjectHandler) RegisterRoutes(r chi.Router) {
	r.Get("/projects/{pid}/gantt", h.Gantt)
	r.Patch("/tasks/{id}/dates", h.SetDates)
}

type taskDatesRequest struct {
	DateStart    *time.Time `json:"date_start"`
	DateDeadline *time.Time `json:"date_deadline"`
}

type taskResponse struct {
	ID           uuid.UUID  `json:"id"`
	ProjectID    uuid.UUID  `json:"project_id"`
	Name         string     `json:"name"`
	DateStart    *time.Time `json:"date_start"`
	DateDeadline *time.Time `json:"date_deadline"`
}

func timePtr(valid bool, t time.Time) *time.Time {
	if !valid {
		return nil
	}
	return &t
}

// Gantt handles GET /projects/{pid}/gantt.
func (h *ProjectHandler) Gantt(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "pid", "project ID")
	if !ok {
		return
	}

	rows, err := h.svc.Gantt(r.Context(), projectID)
	if err != nil {
		internalError(w, h.logger, "project gantt", err)
		return
	}
	if rows == nil {
		rows = []project.Row{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// SetDates handles PATCH /tasks/{id}/dates. A null date clears it.
func (h *ProjectHandler) SetDates(w http.ResponseWriter, r *http.Request) {
	taskID, ok := urlUUID(w, r, "id", "task ID")
	if !ok {
		return
	}

	var req taskDatesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	task, err := h.svc.SetDates(r.Context(), taskID, req.DateStart, req.DateDeadline)
	if err != nil {
		switch {
		case errors.Is(err, project.ErrTaskNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, sales.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			internalError(w, h.logger, "set task dates", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, taskResponse{
		ID:           task.ID,
		ProjectID:    task.ProjectID,
		Name:         task.Name,
		DateStart:    timePtr(task.DateStart.Valid, task.DateStart.Time),
		DateDeadline: timePtr(task.DateDeadline.Valid, task.DateDeadline.Time),
	})
}
