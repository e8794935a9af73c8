package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"gapcards-backend/internal/models"
	"gapcards-backend/internal/repository"
)

const generationLockTTL = 2 * time.Minute

// FlashcardStore owns persisted flashcards. Every method is scoped by the
// owning student; cards of other students behave as missing.
type FlashcardStore interface {
	DueLister
	CreateBatch(ctx context.Context, studentID uuid.UUID, sourceID *uuid.UUID, subject string, cards []models.CandidateCard, now time.Time) (int, error)
	Create(ctx context.Context, card *models.Flashcard) error
	Get(ctx context.Context, studentID, cardID uuid.UUID) (*models.Flashcard, error)
	UpdateSchedule(ctx context.Context, studentID, cardID uuid.UUID, u models.ScheduleUpdate) error
	Stats(ctx context.Context, studentID uuid.UUID, now time.Time) (*models.FlashcardStats, error)
	Delete(ctx context.Context, studentID, cardID uuid.UUID) error
}

type GenerateResult struct {
	NoGaps       bool `json:"-"`
	CreatedCount int  `json:"created_count"`
	DroppedCount int  `json:"dropped_count"`
}

type FlashcardService struct {
	gaps      *GapAggregator
	generator *ContentGenerator
	store     FlashcardStore
	scheduler *Scheduler
	sessions  *ReviewSessionBuilder
	locker    Locker
	events    Publisher
	now       func() time.Time
}

// NewFlashcardService wires the engine. locker and events may be nil.
func NewFlashcardService(
	gaps *GapAggregator,
	generator *ContentGenerator,
	store FlashcardStore,
	scheduler *Scheduler,
	sessions *ReviewSessionBuilder,
	locker Locker,
	events Publisher,
) *FlashcardService {
	return &FlashcardService{
		gaps:      gaps,
		generator: generator,
		store:     store,
		scheduler: scheduler,
		sessions:  sessions,
		locker:    locker,
		events:    events,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// GenerateFromSheet turns the gaps of one graded answer sheet into a batch of
// new cards. A sheet without gaps returns NoGaps and writes nothing.
func (s *FlashcardService) GenerateFromSheet(ctx context.Context, studentID, sheetID uuid.UUID) (*GenerateResult, error) {
	return s.generate(ctx, studentID, sheetID, nil)
}

// GenerateForJob runs a queued generation and tags the published event with the job.
func (s *FlashcardService) GenerateForJob(ctx context.Context, job *models.Job) (*GenerateResult, error) {
	return s.generate(ctx, job.StudentID, job.ReferenceID, &job.ID)
}

// GapCount checks ownership of sheetID and reports how many gaps it has,
// without calling the model.
func (s *FlashcardService) GapCount(ctx context.Context, studentID, sheetID uuid.UUID) (int, error) {
	_, gaps, err := s.gaps.Gaps(ctx, studentID, sheetID)
	if err != nil {
		return 0, err
	}
	return len(gaps), nil
}

func (s *FlashcardService) generate(ctx context.Context, studentID, sheetID uuid.UUID, jobID *uuid.UUID) (*GenerateResult, error) {
	sheet, gaps, err := s.gaps.Gaps(ctx, studentID, sheetID)
	if err != nil {
		return nil, err
	}
	if len(gaps) == 0 {
		return &GenerateResult{NoGaps: true}, nil
	}

	if s.locker != nil {
		release, ok, err := s.locker.TryLock(ctx, "flashcard_gen_lock:"+sheetID.String(), generationLockTTL)
		switch {
		case err != nil:
			log.Printf("flashcard generation: lock for sheet %s unavailable, continuing: %v", sheetID, err)
		case !ok:
			return nil, fmt.Errorf("%w: generation already running for sheet %s", ErrConflict, sheetID)
		default:
			defer release()
		}
	}

	gen, err := s.generator.Generate(ctx, sheet, gaps)
	if err != nil {
		return nil, err
	}

	// Nothing has been written yet; an aborted request stops here.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}

	created, err := s.store.CreateBatch(ctx, studentID, &sheet.ID, sheet.Subject, gen.Cards, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}

	log.Printf("Generated %d flashcard(s) for sheet %s (%d dropped)", created, sheetID, gen.Dropped)

	if s.events != nil {
		s.events.PublishUpdate(ctx, studentID, models.WSMessage{
			Type: "flashcards_generated",
			Payload: models.FlashcardsGeneratedEvent{
				JobID:        jobID,
				SheetID:      sheetID,
				CreatedCount: created,
				DroppedCount: gen.Dropped,
			},
		})
	}

	return &GenerateResult{CreatedCount: created, DroppedCount: gen.Dropped}, nil
}

// Review records whether the student recalled the card and reschedules it.
func (s *FlashcardService) Review(ctx context.Context, studentID, cardID uuid.UUID, correct bool) (*models.Flashcard, error) {
	card, err := s.store.Get(ctx, studentID, cardID)
	if err != nil {
		return nil, err
	}

	u := s.scheduler.Review(card, correct, s.now())
	if err := s.store.UpdateSchedule(ctx, studentID, cardID, u); err != nil {
		if errors.Is(err, repository.ErrStaleVersion) {
			return nil, fmt.Errorf("%w: card %s was reviewed concurrently", ErrConflict, cardID)
		}
		return nil, err
	}

	card.Level = u.Level
	card.NextReviewAt = u.NextReviewAt
	reviewedAt := u.ReviewedAt
	card.LastReviewedAt = &reviewedAt
	card.Version++
	return card, nil
}

// Due returns the student's current review session.
func (s *FlashcardService) Due(ctx context.Context, studentID uuid.UUID, limit int) ([]models.Flashcard, error) {
	return s.sessions.Build(ctx, studentID, s.now(), limit)
}

// CreateCustom stores a card written by the student. It is due immediately.
func (s *FlashcardService) CreateCustom(ctx context.Context, studentID uuid.UUID, req models.CreateFlashcardRequest) (*models.Flashcard, error) {
	req.Subject = strings.TrimSpace(req.Subject)
	req.Question = strings.TrimSpace(req.Question)
	req.Answer = strings.TrimSpace(req.Answer)
	req.Explanation = strings.TrimSpace(req.Explanation)
	req.Tags = normalizeTags(req.Tags)

	if err := ValidateStruct(req); err != nil {
		return nil, err
	}
	if req.Explanation == "" {
		req.Explanation = req.Answer
	}

	card := &models.Flashcard{
		StudentID:    studentID,
		Subject:      req.Subject,
		Question:     req.Question,
		Answer:       req.Answer,
		Explanation:  req.Explanation,
		Tags:         req.Tags,
		Level:        1,
		NextReviewAt: s.now(),
	}
	if err := s.store.Create(ctx, card); err != nil {
		return nil, err
	}
	return card, nil
}

func (s *FlashcardService) Get(ctx context.Context, studentID, cardID uuid.UUID) (*models.Flashcard, error) {
	return s.store.Get(ctx, studentID, cardID)
}

func (s *FlashcardService) Delete(ctx context.Context, studentID, cardID uuid.UUID) error {
	return s.store.Delete(ctx, studentID, cardID)
}

func (s *FlashcardService) Stats(ctx context.Context, studentID uuid.UUID) (*models.FlashcardStats, error) {
	return s.store.Stats(ctx, studentID, s.now())
}
