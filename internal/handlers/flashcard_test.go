package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"gapcards-backend/internal/middleware"
	"gapcards-backend/internal/models"
	"gapcards-backend/internal/services"
)

type stubFlashcardService struct {
	result   *services.GenerateResult
	gapCount int
	card     *models.Flashcard
	cards    []models.Flashcard
	stats    *models.FlashcardStats
	err      error

	generated   bool
	reviewed    *bool
	lastLimit   int
	lastStudent uuid.UUID
}

func (s *stubFlashcardService) GenerateFromSheet(ctx context.Context, studentID, sheetID uuid.UUID) (*services.GenerateResult, error) {
	s.generated = true
	s.lastStudent = studentID
	return s.result, s.err
}

func (s *stubFlashcardService) GapCount(ctx context.Context, studentID, sheetID uuid.UUID) (int, error) {
	return s.gapCount, s.err
}

func (s *stubFlashcardService) Review(ctx context.Context, studentID, cardID uuid.UUID, correct bool) (*models.Flashcard, error) {
	s.reviewed = &correct
	return s.card, s.err
}

func (s *stubFlashcardService) Due(ctx context.Context, studentID uuid.UUID, limit int) ([]models.Flashcard, error) {
	s.lastLimit = limit
	s.lastStudent = studentID
	return s.cards, s.err
}

func (s *stubFlashcardService) CreateCustom(ctx context.Context, studentID uuid.UUID, req models.CreateFlashcardRequest) (*models.Flashcard, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.Flashcard{ID: uuid.New(), StudentID: studentID, Question: req.Question}, nil
}

func (s *stubFlashcardService) Get(ctx context.Context, studentID, cardID uuid.UUID) (*models.Flashcard, error) {
	return s.card, s.err
}

func (s *stubFlashcardService) Delete(ctx context.Context, studentID, cardID uuid.UUID) error {
	return s.err
}

func (s *stubFlashcardService) Stats(ctx context.Context, studentID uuid.UUID) (*models.FlashcardStats, error) {
	return s.stats, s.err
}

type stubQueue struct {
	job *models.Job
	err error
}

func (q *stubQueue) EnqueueGeneration(ctx context.Context, studentID, sheetID uuid.UUID) (*models.Job, error) {
	return q.job, q.err
}

func studentRequest(method, target string, body interface{}, studentID uuid.UUID, params map[string]string) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.RequestIDHeader, "req-123")

	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	req = req.WithContext(context.WithValue(req.Context(), middleware.StudentIDKey, studentID))
	return req
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) models.APIError {
	t.Helper()
	var resp models.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp.Error
}

func TestFlashcardHandler_Generate(t *testing.T) {
	studentID := uuid.New()
	body := map[string]interface{}{"sheet_id": uuid.New()}

	tests := []struct {
		name     string
		svc      *stubFlashcardService
		wantCode int
		wantErr  string
	}{
		{"created", &stubFlashcardService{result: &services.GenerateResult{CreatedCount: 4, DroppedCount: 1}}, http.StatusCreated, ""},
		{"no gaps", &stubFlashcardService{result: &services.GenerateResult{NoGaps: true}}, http.StatusOK, ""},
		{"foreign sheet", &stubFlashcardService{err: services.ErrNotFound}, http.StatusNotFound, "NOT_FOUND"},
		{"in progress", &stubFlashcardService{err: fmt.Errorf("%w: busy", services.ErrConflict)}, http.StatusConflict, "CONFLICT"},
		{"model down", &stubFlashcardService{err: fmt.Errorf("%w: timeout", services.ErrGenerationUnavailable)}, http.StatusInternalServerError, "GENERATION_FAILED"},
		{"nothing usable", &stubFlashcardService{err: fmt.Errorf("%w: all dropped", services.ErrGenerationEmpty)}, http.StatusInternalServerError, "GENERATION_FAILED"},
		{"db down", &stubFlashcardService{err: fmt.Errorf("%w: tx aborted", services.ErrPersistenceFailed)}, http.StatusInternalServerError, "GENERATION_FAILED"},
		{"unexpected", &stubFlashcardService{err: errors.New("boom")}, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewFlashcardHandler(tc.svc, nil)
			rr := httptest.NewRecorder()
			h.Generate(rr, studentRequest(http.MethodPost, "/api/v1/flashcards/generate", body, studentID, nil))

			if rr.Code != tc.wantCode {
				t.Fatalf("expected status %d, got %d", tc.wantCode, rr.Code)
			}
			if tc.wantErr != "" {
				apiErr := decodeError(t, rr)
				if apiErr.Code != tc.wantErr {
					t.Fatalf("expected code %s, got %s", tc.wantErr, apiErr.Code)
				}
				if apiErr.RequestID != "req-123" {
					t.Fatalf("expected request id to be echoed, got %q", apiErr.RequestID)
				}
				if strings.Contains(apiErr.Message, "timeout") || strings.Contains(apiErr.Message, "tx aborted") {
					t.Fatalf("internal detail leaked: %q", apiErr.Message)
				}
			}
		})
	}
}

func TestFlashcardHandler_Generate_CreatedBody(t *testing.T) {
	svc := &stubFlashcardService{result: &services.GenerateResult{CreatedCount: 3, DroppedCount: 2}}
	h := NewFlashcardHandler(svc, nil)
	studentID := uuid.New()

	rr := httptest.NewRecorder()
	h.Generate(rr, studentRequest(http.MethodPost, "/api/v1/flashcards/generate", map[string]interface{}{"sheet_id": uuid.New()}, studentID, nil))

	var payload map[string]int
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload["created_count"] != 3 || payload["dropped_count"] != 2 {
		t.Fatalf("unexpected body: %v", payload)
	}
	if svc.lastStudent != studentID {
		t.Fatalf("generation ran for the wrong student")
	}
}

func TestFlashcardHandler_Generate_MissingSheet(t *testing.T) {
	svc := &stubFlashcardService{}
	h := NewFlashcardHandler(svc, nil)

	rr := httptest.NewRecorder()
	h.Generate(rr, studentRequest(http.MethodPost, "/api/v1/flashcards/generate", map[string]string{}, uuid.New(), nil))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if svc.generated {
		t.Fatalf("generation should not run without a sheet")
	}
	if apiErr := decodeError(t, rr); apiErr.Fields["sheet_id"] == "" {
		t.Fatalf("expected sheet_id field error, got %v", apiErr.Fields)
	}
}

func TestFlashcardHandler_Generate_Async(t *testing.T) {
	jobID := uuid.New()
	svc := &stubFlashcardService{gapCount: 2}
	h := NewFlashcardHandler(svc, &stubQueue{job: &models.Job{ID: jobID}})

	rr := httptest.NewRecorder()
	h.Generate(rr, studentRequest(http.MethodPost, "/api/v1/flashcards/generate",
		map[string]interface{}{"sheet_id": uuid.New(), "async": true}, uuid.New(), nil))

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}
	if svc.generated {
		t.Fatalf("async request must not generate inline")
	}
	var payload map[string]string
	json.NewDecoder(rr.Body).Decode(&payload)
	if payload["job_id"] != jobID.String() {
		t.Fatalf("expected job id %s, got %q", jobID, payload["job_id"])
	}
}

func TestFlashcardHandler_Generate_AsyncNoGapsSkipsQueue(t *testing.T) {
	queue := &stubQueue{err: errors.New("should not be called")}
	h := NewFlashcardHandler(&stubFlashcardService{gapCount: 0}, queue)

	rr := httptest.NewRecorder()
	h.Generate(rr, studentRequest(http.MethodPost, "/api/v1/flashcards/generate",
		map[string]interface{}{"sheet_id": uuid.New(), "async": true}, uuid.New(), nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestFlashcardHandler_Review(t *testing.T) {
	cardID := uuid.New()
	next := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	svc := &stubFlashcardService{card: &models.Flashcard{ID: cardID, Level: 4, NextReviewAt: next}}
	h := NewFlashcardHandler(svc, nil)

	rr := httptest.NewRecorder()
	h.Review(rr, studentRequest(http.MethodPatch, "/api/v1/flashcards/"+cardID.String(),
		map[string]bool{"correct": true}, uuid.New(), map[string]string{"id": cardID.String()}))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if svc.reviewed == nil || !*svc.reviewed {
		t.Fatalf("expected a correct review to reach the service")
	}

	var payload struct {
		Success bool             `json:"success"`
		Card    models.Flashcard `json:"card"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !payload.Success || payload.Card.ID != cardID || payload.Card.Level != 4 {
		t.Fatalf("unexpected body: %+v", payload)
	}
}

func TestFlashcardHandler_Review_RejectsClientSchedule(t *testing.T) {
	cardID := uuid.New()

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"level", map[string]interface{}{"correct": true, "level": 8}},
		{"next review", map[string]interface{}{"correct": true, "nextReviewAt": "2030-01-01T00:00:00Z"}},
		{"missing outcome", map[string]interface{}{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubFlashcardService{}
			h := NewFlashcardHandler(svc, nil)

			rr := httptest.NewRecorder()
			h.Review(rr, studentRequest(http.MethodPatch, "/api/v1/flashcards/"+cardID.String(),
				tc.body, uuid.New(), map[string]string{"id": cardID.String()}))

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
			if svc.reviewed != nil {
				t.Fatalf("service should not be called")
			}
		})
	}
}

func TestFlashcardHandler_Review_ErrorMapping(t *testing.T) {
	cardID := uuid.New()

	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"missing card", services.ErrNotFound, http.StatusNotFound},
		{"concurrent review", fmt.Errorf("%w: stale", services.ErrConflict), http.StatusConflict},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewFlashcardHandler(&stubFlashcardService{err: tc.err}, nil)
			rr := httptest.NewRecorder()
			h.Review(rr, studentRequest(http.MethodPatch, "/api/v1/flashcards/"+cardID.String(),
				map[string]bool{"correct": false}, uuid.New(), map[string]string{"id": cardID.String()}))

			if rr.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, rr.Code)
			}
		})
	}
}

func TestFlashcardHandler_Review_InvalidID(t *testing.T) {
	h := NewFlashcardHandler(&stubFlashcardService{}, nil)
	rr := httptest.NewRecorder()
	h.Review(rr, studentRequest(http.MethodPatch, "/api/v1/flashcards/nope",
		map[string]bool{"correct": true}, uuid.New(), map[string]string{"id": "nope"}))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestFlashcardHandler_Due(t *testing.T) {
	studentID := uuid.New()
	svc := &stubFlashcardService{cards: []models.Flashcard{{ID: uuid.New()}, {ID: uuid.New()}}}
	h := NewFlashcardHandler(svc, nil)

	rr := httptest.NewRecorder()
	h.Due(rr, studentRequest(http.MethodGet, "/api/v1/flashcards/due?studentId="+studentID.String()+"&limit=10", nil, studentID, nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if svc.lastLimit != 10 || svc.lastStudent != studentID {
		t.Fatalf("unexpected call: limit=%d student=%s", svc.lastLimit, svc.lastStudent)
	}

	var payload struct {
		Cards []models.Flashcard `json:"cards"`
	}
	json.NewDecoder(rr.Body).Decode(&payload)
	if len(payload.Cards) != 2 {
		t.Fatalf("expected 2 cards, got %d", len(payload.Cards))
	}
}

func TestFlashcardHandler_Due_EmptyIsArray(t *testing.T) {
	h := NewFlashcardHandler(&stubFlashcardService{}, nil)

	rr := httptest.NewRecorder()
	h.Due(rr, studentRequest(http.MethodGet, "/api/v1/flashcards/due", nil, uuid.New(), nil))

	if !strings.Contains(rr.Body.String(), `"cards":[]`) {
		t.Fatalf("expected empty cards array, got %s", rr.Body.String())
	}
}

func TestFlashcardHandler_Due_OtherStudentIsNotFound(t *testing.T) {
	svc := &stubFlashcardService{}
	h := NewFlashcardHandler(svc, nil)

	rr := httptest.NewRecorder()
	h.Due(rr, studentRequest(http.MethodGet, "/api/v1/flashcards/due?studentId="+uuid.New().String(), nil, uuid.New(), nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestFlashcardHandler_Due_BadLimit(t *testing.T) {
	h := NewFlashcardHandler(&stubFlashcardService{}, nil)

	rr := httptest.NewRecorder()
	h.Due(rr, studentRequest(http.MethodGet, "/api/v1/flashcards/due?limit=ten", nil, uuid.New(), nil))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestFlashcardHandler_Create_ValidationFields(t *testing.T) {
	svc := &stubFlashcardService{err: &services.ValidationError{Fields: map[string]string{"question": "question is a required field"}}}
	h := NewFlashcardHandler(svc, nil)

	rr := httptest.NewRecorder()
	h.Create(rr, studentRequest(http.MethodPost, "/api/v1/flashcards", map[string]string{"subject": "Bio"}, uuid.New(), nil))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if apiErr := decodeError(t, rr); apiErr.Fields["question"] == "" {
		t.Fatalf("expected question field error, got %v", apiErr.Fields)
	}
}

func TestFlashcardHandler_Create(t *testing.T) {
	h := NewFlashcardHandler(&stubFlashcardService{}, nil)

	rr := httptest.NewRecorder()
	h.Create(rr, studentRequest(http.MethodPost, "/api/v1/flashcards",
		map[string]string{"subject": "Bio", "question": "Q", "answer": "A"}, uuid.New(), nil))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
}

func TestFlashcardHandler_GetAndDelete_NotFound(t *testing.T) {
	cardID := uuid.New()
	h := NewFlashcardHandler(&stubFlashcardService{err: services.ErrNotFound}, nil)
	params := map[string]string{"id": cardID.String()}

	rr := httptest.NewRecorder()
	h.Get(rr, studentRequest(http.MethodGet, "/api/v1/flashcards/"+cardID.String(), nil, uuid.New(), params))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get: expected 404, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.Delete(rr, studentRequest(http.MethodDelete, "/api/v1/flashcards/"+cardID.String(), nil, uuid.New(), params))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("delete: expected 404, got %d", rr.Code)
	}
}

func TestFlashcardHandler_Stats(t *testing.T) {
	h := NewFlashcardHandler(&stubFlashcardService{stats: &models.FlashcardStats{TotalCards: 4, Mastered: 1, MasteryRate: 25}}, nil)

	rr := httptest.NewRecorder()
	h.Stats(rr, studentRequest(http.MethodGet, "/api/v1/flashcards/stats", nil, uuid.New(), nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var stats models.FlashcardStats
	json.NewDecoder(rr.Body).Decode(&stats)
	if stats.TotalCards != 4 || stats.MasteryRate != 25 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

type stubJobLookup struct {
	job *models.Job
	err error
}

func (s *stubJobLookup) Get(ctx context.Context, studentID, jobID uuid.UUID) (*models.Job, error) {
	return s.job, s.err
}

func TestJobHandler_GetJob(t *testing.T) {
	jobID := uuid.New()

	rr := httptest.NewRecorder()
	h := NewJobHandler(&stubJobLookup{job: &models.Job{ID: jobID, Status: "completed"}})
	h.GetJob(rr, studentRequest(http.MethodGet, "/api/v1/jobs/"+jobID.String(), nil, uuid.New(), map[string]string{"id": jobID.String()}))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h = NewJobHandler(&stubJobLookup{err: services.ErrNotFound})
	h.GetJob(rr, studentRequest(http.MethodGet, "/api/v1/jobs/"+jobID.String(), nil, uuid.New(), map[string]string{"id": jobID.String()}))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for someone else's job, got %d", rr.Code)
	}
}
