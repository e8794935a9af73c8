package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const JobTypeFlashcardGeneration = "flashcard-generation"

type Job struct {
	ID           uuid.UUID       `json:"id"`
	StudentID    uuid.UUID       `json:"student_id"`
	Type         string          `json:"type"`
	ReferenceID  uuid.UUID       `json:"reference_id"` // answer sheet for flashcard-generation
	ConfigJSON   json.RawMessage `json:"config"`
	Status       string          `json:"status"` // "pending" | "processing" | "completed" | "failed"
	ErrorMessage *string         `json:"error_message"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at"`
}

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type FlashcardsGeneratedEvent struct {
	JobID        *uuid.UUID `json:"job_id,omitempty"`
	SheetID      uuid.UUID  `json:"sheet_id"`
	CreatedCount int        `json:"created_count"`
	DroppedCount int        `json:"dropped_count"`
}

type ErrorEvent struct {
	JobID        uuid.UUID `json:"job_id"`
	ErrorCode    string    `json:"error_code"`
	ErrorMessage string    `json:"error_message"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
