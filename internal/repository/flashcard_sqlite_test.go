package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"gapcards-backend/internal/models"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newTestRepo(t *testing.T) *SQLiteFlashcardRepo {
	t.Helper()
	r, err := NewSQLiteFlashcardRepo(filepath.Join(t.TempDir(), "cards.db"))
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func candidate(q string) models.CandidateCard {
	return models.CandidateCard{
		Question:    q,
		Answer:      "answer to " + q,
		Explanation: "because " + q,
		Tags:        []string{"physics", "optics"},
	}
}

func TestCreateBatch_SchedulesEveryCardAsNew(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	student := uuid.New()
	sheet := uuid.New()

	n, err := r.CreateBatch(ctx, student, &sheet, "Physics", []models.CandidateCard{candidate("a"), candidate("b"), candidate("c")}, t0)
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 created, got %d", n)
	}

	cards, err := r.DueBefore(ctx, student, t0, 10)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(cards) != 3 {
		t.Fatalf("expected 3 due cards, got %d", len(cards))
	}
	for _, c := range cards {
		if c.Level != 1 {
			t.Errorf("expected level 1, got %d", c.Level)
		}
		if !c.NextReviewAt.Equal(t0) {
			t.Errorf("expected next_review_at %s, got %s", t0, c.NextReviewAt)
		}
		if c.LastReviewedAt != nil {
			t.Errorf("expected no last_reviewed_at on a new card")
		}
		if c.SourceAnswerSheetID == nil || *c.SourceAnswerSheetID != sheet {
			t.Errorf("expected source sheet %s, got %v", sheet, c.SourceAnswerSheetID)
		}
		if c.Subject != "Physics" {
			t.Errorf("expected subject Physics, got %q", c.Subject)
		}
	}
}

func TestCreateBatch_RollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	student := uuid.New()

	bad := candidate("b")
	bad.Question = "   "

	_, err := r.CreateBatch(ctx, student, nil, "Physics", []models.CandidateCard{candidate("a"), bad, candidate("c")}, t0)
	if err == nil {
		t.Fatal("expected batch with an invalid row to fail")
	}

	cards, err := r.DueBefore(ctx, student, t0.Add(time.Hour), 10)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(cards) != 0 {
		t.Fatalf("expected no cards after rollback, got %d", len(cards))
	}
}

func TestCreateBatch_EmptyIsNoop(t *testing.T) {
	r := newTestRepo(t)
	n, err := r.CreateBatch(context.Background(), uuid.New(), nil, "Math", nil, t0)
	if err != nil || n != 0 {
		t.Fatalf("expected (0, nil), got (%d, %v)", n, err)
	}
}

func TestGet_RoundTripAndOwnership(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	student := uuid.New()

	card := &models.Flashcard{
		StudentID:    student,
		Subject:      "Chemistry",
		Question:     "What is a mole?",
		Answer:       "6.022e23 particles",
		Explanation:  "Avogadro's number",
		Tags:         []string{"stoichiometry"},
		Level:        1,
		NextReviewAt: t0,
	}
	if err := r.Create(ctx, card); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := r.Get(ctx, student, card.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Question != card.Question || got.Answer != card.Answer || got.Explanation != card.Explanation {
		t.Errorf("content changed on round trip: %+v", got)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "stoichiometry" {
		t.Errorf("tags changed on round trip: %v", got.Tags)
	}
	if got.SourceAnswerSheetID != nil {
		t.Errorf("expected no source sheet on a custom card")
	}

	if _, err := r.Get(ctx, uuid.New(), card.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for another student, got %v", err)
	}
}

func TestUpdateSchedule_VersionCheck(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	student := uuid.New()

	card := &models.Flashcard{StudentID: student, Subject: "Math", Question: "q", Answer: "a", Explanation: "e", Level: 1, NextReviewAt: t0}
	if err := r.Create(ctx, card); err != nil {
		t.Fatalf("create: %v", err)
	}

	reviewed := t0.Add(time.Hour)
	u := models.ScheduleUpdate{Level: 2, NextReviewAt: reviewed.Add(72 * time.Hour), ReviewedAt: reviewed, ExpectedVersion: 1}
	if err := r.UpdateSchedule(ctx, student, card.ID, u); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, _ := r.Get(ctx, student, card.ID)
	if got.Level != 2 || got.Version != 2 {
		t.Errorf("expected level 2 version 2, got level %d version %d", got.Level, got.Version)
	}
	if got.LastReviewedAt == nil || !got.LastReviewedAt.Equal(reviewed) {
		t.Errorf("expected last_reviewed_at %s, got %v", reviewed, got.LastReviewedAt)
	}
	if got.Subject != "Math" || got.Question != "q" {
		t.Errorf("content must not change on schedule update")
	}

	if err := r.UpdateSchedule(ctx, student, card.ID, u); !errors.Is(err, ErrStaleVersion) {
		t.Errorf("expected ErrStaleVersion on replay, got %v", err)
	}
	if err := r.UpdateSchedule(ctx, uuid.New(), card.ID, u); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for another student, got %v", err)
	}
}

func TestDueBefore_OrderingAndLimit(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	student := uuid.New()

	for i := 0; i < 15; i++ {
		c := &models.Flashcard{
			StudentID: student, Subject: "History", Question: "q", Answer: "a", Explanation: "e",
			Level:        1 + i%3,
			NextReviewAt: t0.Add(-time.Duration(15-i) * time.Hour),
		}
		if err := r.Create(ctx, c); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	// not yet due
	future := &models.Flashcard{StudentID: student, Subject: "History", Question: "q", Answer: "a", Explanation: "e", Level: 1, NextReviewAt: t0.Add(time.Hour)}
	if err := r.Create(ctx, future); err != nil {
		t.Fatalf("create future: %v", err)
	}

	cards, err := r.DueBefore(ctx, student, t0, 10)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(cards) != 10 {
		t.Fatalf("expected 10 cards, got %d", len(cards))
	}
	for i := 1; i < len(cards); i++ {
		if cards[i].NextReviewAt.Before(cards[i-1].NextReviewAt) {
			t.Fatalf("cards not ordered by next_review_at at %d", i)
		}
	}
	if !cards[0].NextReviewAt.Equal(t0.Add(-15 * time.Hour)) {
		t.Errorf("expected earliest card first, got %s", cards[0].NextReviewAt)
	}

	again, _ := r.DueBefore(ctx, student, t0, 10)
	for i := range cards {
		if cards[i].ID != again[i].ID {
			t.Fatalf("DueBefore not idempotent at %d", i)
		}
	}
}

func TestDueBefore_TiesBrokenByLevel(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	student := uuid.New()

	for _, level := range []int{4, 1, 3} {
		c := &models.Flashcard{StudentID: student, Subject: "Bio", Question: "q", Answer: "a", Explanation: "e", Level: level, NextReviewAt: t0}
		if err := r.Create(ctx, c); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	cards, err := r.DueBefore(ctx, student, t0, 10)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	want := []int{1, 3, 4}
	for i, c := range cards {
		if c.Level != want[i] {
			t.Errorf("position %d: expected level %d, got %d", i, want[i], c.Level)
		}
	}
}

func TestStatsAndDelete(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	student := uuid.New()

	levels := []int{1, 2, 5, 6}
	var ids []uuid.UUID
	for _, level := range levels {
		c := &models.Flashcard{StudentID: student, Subject: "Bio", Question: "q", Answer: "a", Explanation: "e", Level: level, NextReviewAt: t0}
		if err := r.Create(ctx, c); err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, c.ID)
	}

	stats, err := r.Stats(ctx, student, t0)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalCards != 4 || stats.Mastered != 2 || stats.Learning != 1 || stats.New != 1 || stats.Due != 4 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.MasteryRate != 50 {
		t.Errorf("expected mastery rate 50, got %f", stats.MasteryRate)
	}

	if err := r.Delete(ctx, uuid.New(), ids[0]); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting another student's card, got %v", err)
	}
	if err := r.Delete(ctx, student, ids[0]); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := r.Get(ctx, student, ids[0]); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected deleted card to be gone, got %v", err)
	}
}
