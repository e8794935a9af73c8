package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"gapcards-backend/internal/models"
)

// Generator is the external text-generation model.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Generation is the validated output of one generation call.
type Generation struct {
	Cards   []models.CandidateCard
	Dropped int
}

// ContentGenerator turns gap records into candidate flashcards.
type ContentGenerator struct {
	gen     Generator
	timeout time.Duration
}

func NewContentGenerator(gen Generator, timeout time.Duration) *ContentGenerator {
	return &ContentGenerator{gen: gen, timeout: timeout}
}

// Generate calls the model once. It fails with ErrGenerationUnavailable when
// the call errors or exceeds the timeout and with ErrGenerationEmpty when no
// element of the response survives validation.
func (g *ContentGenerator) Generate(ctx context.Context, sheet *models.AnswerSheet, gaps []models.GapRecord) (*Generation, error) {
	if len(gaps) == 0 {
		return nil, fmt.Errorf("%w: no gap records to generate from", ErrGenerationEmpty)
	}

	prompt := buildGapPrompt(sheet, gaps)

	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := g.gen.Generate(callCtx, prompt)
		done <- result{text: text, err: err}
	}()

	var raw string
	select {
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGenerationUnavailable, res.err)
		}
		raw = res.text
	case <-callCtx.Done():
		return nil, fmt.Errorf("%w: %v", ErrGenerationUnavailable, callCtx.Err())
	}

	cards, dropped, err := parseCandidates(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationEmpty, err)
	}
	if dropped > 0 {
		log.Printf("flashcard generation: dropped %d malformed card(s), kept %d", dropped, len(cards))
	}
	if len(cards) == 0 {
		return nil, fmt.Errorf("%w: all %d candidate(s) were malformed", ErrGenerationEmpty, dropped)
	}

	return &Generation{Cards: cards, Dropped: dropped}, nil
}

func buildGapPrompt(sheet *models.AnswerSheet, gaps []models.GapRecord) string {
	type feedback struct {
		Q         int    `json:"q"`
		Text      string `json:"text"`
		Gap       string `json:"gap"`
		Strengths string `json:"strengths,omitempty"`
	}
	data := make([]feedback, len(gaps))
	for i, g := range gaps {
		data[i] = feedback{Q: g.QuestionNum, Text: g.ExtractedText, Gap: g.Gaps, Strengths: g.Strengths}
	}
	feedbackJSON, _ := json.Marshal(data)

	var b strings.Builder

	b.WriteString("You are an expert tutor. Below is AI-generated feedback on a student's graded exam answers.\n")
	b.WriteString("Create high-quality active recall flashcards that target the specific gaps in this feedback.\n\n")

	if sheet != nil {
		if sheet.Subject != "" {
			b.WriteString(fmt.Sprintf("Subject: %s\n", sheet.Subject))
		}
		if sheet.ExamName != "" {
			b.WriteString(fmt.Sprintf("Exam: %s\n", sheet.ExamName))
		}
		b.WriteString("\n")
	}

	b.WriteString(`CRITICAL: Return ONLY a valid JSON array. No preamble, no markdown, no backticks.

Each element must be an object with exactly these four fields:
{"question": "concise question targeting the gap", "answer": "correct, clear answer", "explanation": "brief why or mnemonic", "tags": ["1 to 3 short keywords"]}
`)

	b.WriteString("\n---FEEDBACK---\n")
	b.Write(feedbackJSON)
	b.WriteString("\n---END---\n")

	return b.String()
}

// parseCandidates decodes a model response in two stages: locate the JSON
// array, then decode and validate each element on its own. Elements that
// fail either step are counted in dropped.
func parseCandidates(raw string) (cards []models.CandidateCard, dropped int, err error) {
	span := extractJSONArray(raw)

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(span), &elems); err != nil {
		// A lone object is accepted as a one-element array.
		trimmed := bytes.TrimSpace([]byte(span))
		if len(trimmed) == 0 || trimmed[0] != '{' {
			return nil, 0, fmt.Errorf("response is not a JSON array: %v", err)
		}
		elems = []json.RawMessage{trimmed}
	}

	for _, elem := range elems {
		card, ok := decodeCandidate(elem)
		if !ok {
			dropped++
			continue
		}
		cards = append(cards, card)
	}
	return cards, dropped, nil
}

func decodeCandidate(elem json.RawMessage) (models.CandidateCard, bool) {
	var wire struct {
		Question    string   `json:"question"`
		Answer      string   `json:"answer"`
		Explanation string   `json:"explanation"`
		Tags        []string `json:"tags"`
	}
	if err := json.Unmarshal(elem, &wire); err != nil {
		return models.CandidateCard{}, false
	}

	card := models.CandidateCard{
		Question:    strings.TrimSpace(wire.Question),
		Answer:      strings.TrimSpace(wire.Answer),
		Explanation: strings.TrimSpace(wire.Explanation),
		Tags:        normalizeTags(wire.Tags),
	}
	if err := ValidateStruct(card); err != nil {
		return models.CandidateCard{}, false
	}
	return card, true
}

// normalizeTags trims tags and removes blanks and case-insensitive duplicates.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}

// extractJSONArray returns the first balanced [...] span whose first element
// is an object. Failing that it returns a lone {...} object that opens before
// any other array, then the first balanced span of any kind, then the whole
// trimmed text. Brackets inside JSON strings are ignored.
func extractJSONArray(text string) string {
	first, firstStart := "", -1
	offset := 0
	for {
		idx := strings.IndexByte(text[offset:], '[')
		if idx < 0 {
			break
		}
		start := offset + idx
		end := matchDelim(text, start, '[', ']')
		if end < 0 {
			// An unclosed '[' in prose must not hide a later array.
			offset = start + 1
			continue
		}
		span := text[start : end+1]
		if holdsObjects(span) {
			return span
		}
		if first == "" {
			first, firstStart = span, start
		}
		offset = start + 1
	}

	if obj := strings.IndexByte(text, '{'); obj >= 0 && (firstStart < 0 || obj < firstStart) {
		if end := matchDelim(text, obj, '{', '}'); end >= 0 {
			return text[obj : end+1]
		}
	}
	if first != "" {
		return first
	}
	return strings.TrimSpace(text)
}

func matchDelim(text string, start int, open, close byte) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func holdsObjects(span string) bool {
	inner := strings.TrimSpace(span[1:])
	return strings.HasPrefix(inner, "{") || strings.HasPrefix(inner, "]")
}
