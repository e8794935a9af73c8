package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"gapcards-backend/internal/middleware"
	"gapcards-backend/internal/models"
)

type jobLookup interface {
	Get(ctx context.Context, studentID, jobID uuid.UUID) (*models.Job, error)
}

type JobHandler struct {
	jobs jobLookup
}

func NewJobHandler(jobs jobLookup) *JobHandler {
	return &JobHandler{jobs: jobs}
}

func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid job ID", r))
		return
	}

	job, err := h.jobs.Get(r.Context(), middleware.GetStudentID(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, job)
}
