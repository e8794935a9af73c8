package models

import "github.com/google/uuid"

// GapRecord is one graded answer flagged with a knowledge gap.
type GapRecord struct {
	QuestionNum   int    `json:"question_num"`
	ExtractedText string `json:"extracted_text"`
	Gaps          string `json:"gaps"`
	Strengths     string `json:"strengths"`
}

type AnswerSheet struct {
	ID        uuid.UUID `json:"id"`
	StudentID uuid.UUID `json:"student_id"`
	ExamName  string    `json:"exam_name"`
	Subject   string    `json:"subject"`
}
