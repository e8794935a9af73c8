package main

import (
	"context"
	"log"

	"gapcards-backend/internal/config"
	"gapcards-backend/internal/database"
	"gapcards-backend/internal/middleware"
	"gapcards-backend/internal/repository"
	"gapcards-backend/internal/router"
	"gapcards-backend/internal/services"
)

// stores is the persistence the server runs on: Postgres in deployments,
// a single SQLite file when DATABASE_URL is sqlite://path.
type stores struct {
	driver     string
	flashcards services.FlashcardStore
	gaps       services.GapSource
	students   middleware.StudentResolver
	jobs       services.JobStore
	health     router.HealthChecker
	close      func()
}

func openStores(cfg *config.Config) (*stores, error) {
	if path, ok := repository.SQLitePath(cfg.DatabaseURL); ok {
		repo, err := repository.NewSQLiteFlashcardRepo(path)
		if err != nil {
			return nil, err
		}
		return &stores{
			driver:     "sqlite",
			flashcards: repo,
			gaps:       repo.Gaps(),
			students:   repo.Students(),
			jobs:       repo.Jobs(),
			health:     repo,
			close:      func() { repo.Close() },
		}, nil
	}

	pool, err := database.NewPostgresPool(cfg.DatabaseURL, 0)
	if err != nil {
		return nil, err
	}
	if err := database.RunMigrations(context.Background(), pool, cfg.MigrationsDir); err != nil {
		pool.Close()
		return nil, err
	}
	log.Println("✓ Database migrations applied")

	return &stores{
		driver:     "postgres",
		flashcards: repository.NewFlashcardRepo(pool),
		gaps:       repository.NewGapRepo(pool),
		students:   repository.NewStudentRepo(pool),
		jobs:       repository.NewJobRepo(pool),
		health:     pool,
		close:      pool.Close,
	}, nil
}
