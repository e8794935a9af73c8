package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gapcards-backend/internal/config"
	"gapcards-backend/internal/database"
	"gapcards-backend/internal/handlers"
	"gapcards-backend/internal/middleware"
	"gapcards-backend/internal/router"
	"gapcards-backend/internal/services"
	"gapcards-backend/internal/websocket"
	"gapcards-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting GapCards Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Open Storage (Postgres, or SQLite for local runs) ────
	st, err := openStores(cfg)
	if err != nil {
		log.Fatalf("✗ Database initialization failed: %v", err)
	}
	defer st.close()
	log.Printf("✓ Storage ready (%s)", st.driver)

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Initialize Gemini Client ────
	gemini, err := services.NewGeminiGenerator(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiConcurrentReqs)
	if err != nil {
		log.Fatalf("✗ Gemini client initialization failed: %v", err)
	}
	defer gemini.Close()
	log.Printf("✓ Gemini client initialized (%s)", cfg.GeminiModel)

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	coordinator := services.NewRedisCoordinator(redisClients.Queue)
	flashcardService := services.NewFlashcardService(
		services.NewGapAggregator(st.gaps),
		services.NewContentGenerator(gemini, cfg.GenerationTimeout),
		st.flashcards,
		services.NewScheduler(services.DefaultMaxLevel),
		services.NewReviewSessionBuilder(st.flashcards, cfg.ReviewSessionLimit),
		coordinator,
		coordinator,
	)
	jobQueue := services.NewJobQueue(st.jobs, redisClients.Queue)

	// ──── Initialize Handlers ────
	flashcardHandler := handlers.NewFlashcardHandler(flashcardService, jobQueue)
	jobHandler := handlers.NewJobHandler(jobQueue)

	// ──── Step 5: Start Job Worker Pool ────
	// Jobs get the generation timeout plus headroom for the batch write.
	workerPool := worker.NewPool(
		redisClients.Queue,
		flashcardService,
		st.jobs,
		coordinator,
		cfg.GenerationTimeout+30*time.Second,
		cfg.WorkerCount,
	)
	workerPool.Start()
	log.Printf("✓ Worker pool started (%d goroutines)", cfg.WorkerCount)

	// ──── Step 6: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, jwtAuth, st.students)
	log.Println("✓ WebSocket hub started")

	// ──── Step 7: Start HTTP Server ────
	r := router.New(router.Deps{
		JWTAuth:          jwtAuth,
		Students:         st.students,
		FlashcardHandler: flashcardHandler,
		JobHandler:       jobHandler,
		WebSocket:        wsHub.HandleWebSocket,
		Health: map[string]router.HealthChecker{
			st.driver: st.health,
			"redis":    redisClients,
		},
		FrontendURL:   cfg.FrontendURL,
		GenerateLimit: cfg.GenerateRatePerMinute,
	})

	// Synchronous generation can take up to the generation timeout.
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.GenerationTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		workerPool.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ GapCards Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
