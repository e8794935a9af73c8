package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"gapcards-backend/internal/handlers"
	"gapcards-backend/internal/middleware"
	"gapcards-backend/internal/models"
	"gapcards-backend/internal/services"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type fixedResolver struct{ studentID uuid.UUID }

func (f fixedResolver) StudentIDForUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	return f.studentID, nil
}

type emptyCards struct{}

func (emptyCards) GenerateFromSheet(ctx context.Context, studentID, sheetID uuid.UUID) (*services.GenerateResult, error) {
	return &services.GenerateResult{NoGaps: true}, nil
}
func (emptyCards) GapCount(ctx context.Context, studentID, sheetID uuid.UUID) (int, error) {
	return 0, nil
}
func (emptyCards) Review(ctx context.Context, studentID, cardID uuid.UUID, correct bool) (*models.Flashcard, error) {
	return nil, services.ErrNotFound
}
func (emptyCards) Due(ctx context.Context, studentID uuid.UUID, limit int) ([]models.Flashcard, error) {
	return nil, nil
}
func (emptyCards) CreateCustom(ctx context.Context, studentID uuid.UUID, req models.CreateFlashcardRequest) (*models.Flashcard, error) {
	return nil, services.ErrNotFound
}
func (emptyCards) Get(ctx context.Context, studentID, cardID uuid.UUID) (*models.Flashcard, error) {
	return nil, services.ErrNotFound
}
func (emptyCards) Delete(ctx context.Context, studentID, cardID uuid.UUID) error {
	return services.ErrNotFound
}
func (emptyCards) Stats(ctx context.Context, studentID uuid.UUID) (*models.FlashcardStats, error) {
	return &models.FlashcardStats{}, nil
}

type noJobs struct{}

func (noJobs) Get(ctx context.Context, studentID, jobID uuid.UUID) (*models.Job, error) {
	return nil, services.ErrNotFound
}

func newTestRouter(health map[string]HealthChecker) (http.Handler, *middleware.JWTAuth) {
	auth := middleware.NewJWTAuth("router-secret")
	return New(Deps{
		JWTAuth:          auth,
		Students:         fixedResolver{studentID: uuid.New()},
		FlashcardHandler: handlers.NewFlashcardHandler(emptyCards{}, nil),
		JobHandler:       handlers.NewJobHandler(noJobs{}),
		Health:           health,
		FrontendURL:      "http://localhost:5173",
	}), auth
}

func TestRouter_RequiresAuth(t *testing.T) {
	h, _ := newTestRouter(nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/flashcards/due", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if rr.Header().Get(middleware.RequestIDHeader) == "" {
		t.Fatalf("expected a request id header")
	}
}

func TestRouter_RoutesAuthenticatedRequests(t *testing.T) {
	h, auth := newTestRouter(nil)
	token, _ := auth.GenerateAccessToken(uuid.New(), time.Minute)

	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/api/v1/flashcards/due", http.StatusOK},
		{http.MethodGet, "/api/v1/flashcards/stats", http.StatusOK},
		{http.MethodGet, "/api/v1/flashcards/" + uuid.NewString(), http.StatusNotFound},
		{http.MethodDelete, "/api/v1/flashcards/" + uuid.NewString(), http.StatusNotFound},
		{http.MethodGet, "/api/v1/jobs/" + uuid.NewString(), http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestRouter_Health(t *testing.T) {
	h, _ := newTestRouter(map[string]HealthChecker{
		"postgres": pingFunc(func(ctx context.Context) error { return nil }),
	})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	h, _ = newTestRouter(map[string]HealthChecker{
		"redis": pingFunc(func(ctx context.Context) error { return errors.New("down") }),
	})
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
