package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"gapcards-backend/internal/handlers"
	"gapcards-backend/internal/middleware"
)

// HealthChecker is one dependency probed by /health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	JWTAuth          *middleware.JWTAuth
	Students         middleware.StudentResolver
	FlashcardHandler *handlers.FlashcardHandler
	JobHandler       *handlers.JobHandler
	WebSocket        http.HandlerFunc
	Health           map[string]HealthChecker
	FrontendURL      string
	GenerateLimit    int
}

func New(d Deps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(d.FrontendURL))

	generateLimit := d.GenerateLimit
	if generateLimit <= 0 {
		generateLimit = 10
	}
	generateLimiter := middleware.NewRateLimiter(generateLimit, time.Minute)

	r.Get("/health", healthHandler(d.Health))

	r.Route("/api/v1", func(r chi.Router) {
		if d.WebSocket != nil {
			r.Get("/ws", d.WebSocket) // token in query string
		}

		r.Group(func(r chi.Router) {
			r.Use(d.JWTAuth.Middleware)
			r.Use(middleware.RequireStudent(d.Students))

			r.Route("/flashcards", func(r chi.Router) {
				r.With(generateLimiter.Middleware).Post("/generate", d.FlashcardHandler.Generate)
				r.Get("/due", d.FlashcardHandler.Due)
				r.Get("/stats", d.FlashcardHandler.Stats)
				r.Post("/", d.FlashcardHandler.Create)
				r.Get("/{id}", d.FlashcardHandler.Get)
				r.Patch("/{id}", d.FlashcardHandler.Review)
				r.Delete("/{id}", d.FlashcardHandler.Delete)
			})

			r.Get("/jobs/{id}", d.JobHandler.GetJob)
		})
	})

	return r
}

func healthHandler(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := `{"status":"ok"}`
		for name, c := range checks {
			if err := c.Ping(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body = `{"status":"degraded","failing":"` + name + `"}`
				break
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}
}
