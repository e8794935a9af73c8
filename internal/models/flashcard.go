package models

import (
	"time"

	"github.com/google/uuid"
)

// MasteredLevel is the level from which a card counts as mastered in stats.
const MasteredLevel = 5

type Flashcard struct {
	ID                  uuid.UUID  `json:"id"`
	StudentID           uuid.UUID  `json:"student_id"`
	SourceAnswerSheetID *uuid.UUID `json:"source_answer_sheet_id"`
	Subject             string     `json:"subject"`
	Question            string     `json:"question"`
	Answer              string     `json:"answer"`
	Explanation         string     `json:"explanation"`
	Tags                []string   `json:"tags"`
	Level               int        `json:"level"`
	NextReviewAt        time.Time  `json:"next_review_at"`
	LastReviewedAt      *time.Time `json:"last_reviewed_at"`
	Version             int        `json:"version"`
	CreatedAt           time.Time  `json:"created_at"`
}

// CandidateCard is a generated card that has not been scheduled yet.
type CandidateCard struct {
	Question    string   `json:"question" validate:"required"`
	Answer      string   `json:"answer" validate:"required"`
	Explanation string   `json:"explanation" validate:"required"`
	Tags        []string `json:"tags" validate:"omitempty,dive,required,max=40"`
}

// ScheduleUpdate carries the only fields allowed to change after creation.
type ScheduleUpdate struct {
	Level           int
	NextReviewAt    time.Time
	ReviewedAt      time.Time
	ExpectedVersion int
}

type GenerateFlashcardsRequest struct {
	SheetID uuid.UUID `json:"sheet_id"`
	Async   bool      `json:"async"`
}

type CreateFlashcardRequest struct {
	Subject     string   `json:"subject" validate:"required,max=120"`
	Question    string   `json:"question" validate:"required"`
	Answer      string   `json:"answer" validate:"required"`
	Explanation string   `json:"explanation"`
	Tags        []string `json:"tags" validate:"omitempty,max=10,dive,required,max=40"`
}

// ReviewRequest is the outcome of a single review. Level and NextReviewAt
// are only decoded so that clients still sending them can be rejected.
type ReviewRequest struct {
	Correct      *bool   `json:"correct" validate:"required"`
	Level        *int    `json:"level"`
	NextReviewAt *string `json:"nextReviewAt"`
}

type FlashcardStats struct {
	TotalCards  int     `json:"total_cards"`
	Due         int     `json:"due"`
	Mastered    int     `json:"mastered"`
	Learning    int     `json:"learning"`
	New         int     `json:"new"`
	MasteryRate float64 `json:"mastery_rate"`
}
