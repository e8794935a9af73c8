package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"gapcards-backend/internal/models"
)

const maxSessionLimit = 100

type DueLister interface {
	DueBefore(ctx context.Context, studentID uuid.UUID, ts time.Time, limit int) ([]models.Flashcard, error)
}

// ReviewSessionBuilder assembles the queue of cards a student should review now.
type ReviewSessionBuilder struct {
	cards        DueLister
	defaultLimit int
}

func NewReviewSessionBuilder(cards DueLister, defaultLimit int) *ReviewSessionBuilder {
	if defaultLimit <= 0 || defaultLimit > maxSessionLimit {
		defaultLimit = 20
	}
	return &ReviewSessionBuilder{cards: cards, defaultLimit: defaultLimit}
}

// Build returns up to limit due cards, earliest first. A non-positive limit
// uses the default and anything above 100 is clamped.
func (b *ReviewSessionBuilder) Build(ctx context.Context, studentID uuid.UUID, now time.Time, limit int) ([]models.Flashcard, error) {
	switch {
	case limit <= 0:
		limit = b.defaultLimit
	case limit > maxSessionLimit:
		limit = maxSessionLimit
	}
	return b.cards.DueBefore(ctx, studentID, now, limit)
}
