package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"gapcards-backend/internal/middleware"
	"gapcards-backend/internal/models"
	"gapcards-backend/internal/services"
)

type flashcardService interface {
	GenerateFromSheet(ctx context.Context, studentID, sheetID uuid.UUID) (*services.GenerateResult, error)
	GapCount(ctx context.Context, studentID, sheetID uuid.UUID) (int, error)
	Review(ctx context.Context, studentID, cardID uuid.UUID, correct bool) (*models.Flashcard, error)
	Due(ctx context.Context, studentID uuid.UUID, limit int) ([]models.Flashcard, error)
	CreateCustom(ctx context.Context, studentID uuid.UUID, req models.CreateFlashcardRequest) (*models.Flashcard, error)
	Get(ctx context.Context, studentID, cardID uuid.UUID) (*models.Flashcard, error)
	Delete(ctx context.Context, studentID, cardID uuid.UUID) error
	Stats(ctx context.Context, studentID uuid.UUID) (*models.FlashcardStats, error)
}

type generationQueue interface {
	EnqueueGeneration(ctx context.Context, studentID, sheetID uuid.UUID) (*models.Job, error)
}

type FlashcardHandler struct {
	cards flashcardService
	queue generationQueue
}

func NewFlashcardHandler(cards flashcardService, queue generationQueue) *FlashcardHandler {
	return &FlashcardHandler{cards: cards, queue: queue}
}

func (h *FlashcardHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateFlashcardsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.SheetID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"sheet_id": "sheet_id is a required field"}, r))
		return
	}

	studentID := middleware.GetStudentID(r.Context())

	if req.Async && h.queue != nil {
		n, err := h.cards.GapCount(r.Context(), studentID, req.SheetID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		if n == 0 {
			writeJSON(w, http.StatusOK, map[string]interface{}{"message": "no gaps found", "created_count": 0})
			return
		}

		job, err := h.queue.EnqueueGeneration(r.Context(), studentID, req.SheetID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]interface{}{"job_id": job.ID})
		return
	}

	res, err := h.cards.GenerateFromSheet(r.Context(), studentID, req.SheetID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if res.NoGaps {
		writeJSON(w, http.StatusOK, map[string]interface{}{"message": "no gaps found", "created_count": 0})
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

// Review records a review outcome. Clients report only whether they
// answered correctly; level and next review date are computed here.
func (h *FlashcardHandler) Review(w http.ResponseWriter, r *http.Request) {
	cardID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid card ID", r))
		return
	}

	var req models.ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if req.Level != nil || req.NextReviewAt != nil {
		fields := map[string]string{}
		if req.Level != nil {
			fields["level"] = "level is computed by the server"
		}
		if req.NextReviewAt != nil {
			fields["nextReviewAt"] = "nextReviewAt is computed by the server"
		}
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Send the review outcome as {\"correct\": bool}", fields, r))
		return
	}
	if err := services.ValidateStruct(req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	card, err := h.cards.Review(r.Context(), middleware.GetStudentID(r.Context()), cardID, *req.Correct)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "card": card})
}

func (h *FlashcardHandler) Due(w http.ResponseWriter, r *http.Request) {
	studentID := middleware.GetStudentID(r.Context())

	if raw := r.URL.Query().Get("studentId"); raw != "" {
		requested, err := uuid.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid studentId", r))
			return
		}
		// Other students' queues are indistinguishable from missing ones.
		if requested != studentID {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Student not found", r))
			return
		}
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "limit must be an integer", r))
			return
		}
		limit = n
	}

	cards, err := h.cards.Due(r.Context(), studentID, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if cards == nil {
		cards = []models.Flashcard{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"cards": cards})
}

func (h *FlashcardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateFlashcardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	card, err := h.cards.CreateCustom(r.Context(), middleware.GetStudentID(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, card)
}

func (h *FlashcardHandler) Get(w http.ResponseWriter, r *http.Request) {
	cardID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid card ID", r))
		return
	}

	card, err := h.cards.Get(r.Context(), middleware.GetStudentID(r.Context()), cardID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, card)
}

func (h *FlashcardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	cardID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid card ID", r))
		return
	}

	if err := h.cards.Delete(r.Context(), middleware.GetStudentID(r.Context()), cardID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Flashcard deleted"})
}

func (h *FlashcardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.cards.Stats(r.Context(), middleware.GetStudentID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
