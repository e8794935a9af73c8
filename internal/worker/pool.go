package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"gapcards-backend/internal/models"
	"gapcards-backend/internal/services"
)

type jobRunner interface {
	GenerateForJob(ctx context.Context, job *models.Job) (*services.GenerateResult, error)
}

type jobStatusStore interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateError(ctx context.Context, id uuid.UUID, errMsg string) error
}

// Pool drains queue:flashcard-generation. Failed jobs are marked failed and
// reported to the student; they are not retried.
type Pool struct {
	redis       *redis.Client
	cards       jobRunner
	jobs        jobStatusStore
	events      services.Publisher
	jobTimeout  time.Duration
	workerCount int
	stopChan    chan struct{}
}

func NewPool(
	redisClient *redis.Client,
	cards jobRunner,
	jobs jobStatusStore,
	events services.Publisher,
	jobTimeout time.Duration,
	workerCount int,
) *Pool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &Pool{
		redis:       redisClient,
		cards:       cards,
		jobs:        jobs,
		events:      events,
		jobTimeout:  jobTimeout,
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		go p.worker(i)
	}

	log.Printf("Started %d worker goroutines", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) worker(id int) {
	for {
		select {
		case <-p.stopChan:
			log.Printf("Worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		// BLPOP with 30s timeout
		result, err := p.redis.BLPop(ctx, 30*time.Second, services.FlashcardQueue).Result()
		if err != nil {
			continue // Timeout or error, retry
		}
		if len(result) < 2 {
			continue
		}

		var job models.Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("Worker %d: failed to parse job: %v", id, err)
			continue
		}

		lockKey := fmt.Sprintf("job_lock:%s", job.ID.String())
		locked, err := p.redis.SetNX(ctx, lockKey, "1", 10*time.Minute).Result()
		if err != nil || !locked {
			continue // Another worker has this job
		}

		log.Printf("Worker %d: processing job %s (type: %s)", id, job.ID, job.Type)
		p.Process(ctx, &job)

		p.redis.Del(ctx, lockKey)
	}
}

// Process runs one job to completion and records the outcome.
func (p *Pool) Process(ctx context.Context, job *models.Job) {
	p.jobs.UpdateStatus(ctx, job.ID, "processing")

	runCtx := ctx
	if p.jobTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.jobTimeout)
		defer cancel()
	}

	var err error
	switch job.Type {
	case models.JobTypeFlashcardGeneration:
		_, err = p.cards.GenerateForJob(runCtx, job)
	default:
		err = fmt.Errorf("unknown job type: %s", job.Type)
	}

	if err != nil {
		p.handleFailure(ctx, job, err)
		return
	}

	p.jobs.UpdateStatus(ctx, job.ID, "completed")
	log.Printf("Job %s completed successfully", job.ID)
}

func (p *Pool) handleFailure(ctx context.Context, job *models.Job, err error) {
	errMsg := err.Error()
	log.Printf("Job %s failed: %s", job.ID, errMsg)

	p.jobs.UpdateStatus(ctx, job.ID, "failed")
	p.jobs.UpdateError(ctx, job.ID, errMsg)

	if p.events != nil {
		p.events.PublishUpdate(ctx, job.StudentID, models.WSMessage{
			Type: "error",
			Payload: models.ErrorEvent{
				JobID:        job.ID,
				ErrorCode:    errorCode(err),
				ErrorMessage: "Flashcard generation failed",
			},
		})
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, services.ErrConflict):
		return "CONFLICT"
	case errors.Is(err, services.ErrGenerationUnavailable), errors.Is(err, services.ErrGenerationEmpty),
		errors.Is(err, services.ErrPersistenceFailed):
		return "GENERATION_FAILED"
	default:
		return "JOB_FAILED"
	}
}
