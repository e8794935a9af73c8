package services

import (
	"time"

	"gapcards-backend/internal/models"
)

const (
	// DefaultMaxLevel caps mastery; the interval table stops growing at level 6.
	DefaultMaxLevel = 8

	day = 24 * time.Hour
)

// reviewIntervals[i] is the spacing applied after reaching level i+1.
var reviewIntervals = []time.Duration{
	1 * day,
	3 * day,
	7 * day,
	14 * day,
	30 * day,
	60 * day,
}

// Schedule is the scheduling state of a card after a review.
type Schedule struct {
	Level        int       `json:"level"`
	NextReviewAt time.Time `json:"next_review_at"`
	ReviewedAt   time.Time `json:"reviewed_at"`
}

// Scheduler is the per-card spaced-repetition state machine. Levels run
// from 1 to MaxLevel; a correct answer moves one level up, a miss resets
// to level 1.
type Scheduler struct {
	maxLevel int
}

// NewScheduler returns a Scheduler capped at maxLevel. Zero or negative
// values fall back to DefaultMaxLevel.
func NewScheduler(maxLevel int) *Scheduler {
	if maxLevel <= 0 {
		maxLevel = DefaultMaxLevel
	}
	return &Scheduler{maxLevel: maxLevel}
}

func (s *Scheduler) MaxLevel() int { return s.maxLevel }

// Interval returns the spacing for a card sitting at level.
func Interval(level int) time.Duration {
	if level < 1 {
		level = 1
	}
	if level > len(reviewIntervals) {
		return reviewIntervals[len(reviewIntervals)-1]
	}
	return reviewIntervals[level-1]
}

// Next computes the schedule that follows a review at time at.
func (s *Scheduler) Next(level int, correct bool, at time.Time) Schedule {
	if level < 1 {
		level = 1
	}

	next := 1
	if correct {
		next = level + 1
		if next > s.maxLevel {
			next = s.maxLevel
		}
	}

	return Schedule{
		Level:        next,
		NextReviewAt: at.Add(Interval(next)),
		ReviewedAt:   at,
	}
}

// Review applies an outcome to a card and returns the update to persist,
// guarded by the card's current version.
func (s *Scheduler) Review(card *models.Flashcard, correct bool, at time.Time) models.ScheduleUpdate {
	next := s.Next(card.Level, correct, at)
	return models.ScheduleUpdate{
		Level:           next.Level,
		NextReviewAt:    next.NextReviewAt,
		ReviewedAt:      next.ReviewedAt,
		ExpectedVersion: card.Version,
	}
}
