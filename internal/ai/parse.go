package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"quizai/internal/models"
)

// rawQuestion mirrors the JSON shape models emit, with loose typing so a
// slightly off response (numeric answers, object answers) can be normalized
// instead of rejected.
type rawQuestion struct {
	Type          string          `json:"type"`
	Content       json.RawMessage `json:"content"`
	Options       json.RawMessage `json:"options"`
	CorrectAnswer json.RawMessage `json:"correctAnswer"`
	Explanation   json.RawMessage `json:"explanation"`
	Difficulty    json.RawMessage `json:"difficulty"`
}

type rawQuiz struct {
	Title     string        `json:"title"`
	Questions []rawQuestion `json:"questions"`
}

// ParseQuizResponse is the first of two validation passes over model output.
// It strips markdown fences, parses the JSON and normalizes each question.
// Structural bounds are checked afterwards by sanitize.ValidateQuizResponse.
func ParseQuizResponse(responseText string) (*models.GeneratedQuiz, error) {
	cleaned := stripCodeFence(responseText)

	var raw rawQuiz
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("AI response was not valid JSON")
	}

	if raw.Title == "" {
		return nil, fmt.Errorf("invalid quiz structure: missing or invalid title")
	}
	if raw.Questions == nil {
		return nil, fmt.Errorf("invalid quiz structure: missing questions array")
	}

	quiz := &models.GeneratedQuiz{Title: raw.Title}
	for i, q := range raw.Questions {
		content := normalizeAnswer(q.Content)
		if q.Type == "" || content == "" || len(q.CorrectAnswer) == 0 {
			return nil, fmt.Errorf("invalid question at index %d: missing required fields", i)
		}

		qt := models.QuestionType(q.Type)
		if !qt.Valid() {
			return nil, fmt.Errorf("invalid question at index %d: invalid type %q", i, q.Type)
		}

		question := models.GeneratedQuestion{
			Type:          qt,
			Content:       content,
			Options:       parseOptions(q.Options),
			CorrectAnswer: normalizeAnswer(q.CorrectAnswer),
			Explanation:   parseExplanation(q.Explanation),
			Difficulty:    parseDifficulty(q.Difficulty),
		}
		quiz.Questions = append(quiz.Questions, question)
	}
	return quiz, nil
}

func stripCodeFence(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = cleaned[7:]
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = cleaned[3:]
	}
	if strings.HasSuffix(cleaned, "```") {
		cleaned = cleaned[:len(cleaned)-3]
	}
	return strings.TrimSpace(cleaned)
}

func parseOptions(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var anyOpts []interface{}
	if err := json.Unmarshal(raw, &anyOpts); err != nil {
		return nil
	}
	opts := make([]string, len(anyOpts))
	for i, o := range anyOpts {
		if s, ok := o.(string); ok {
			opts[i] = s
		} else {
			opts[i] = fmt.Sprintf("%v", o)
		}
	}
	return opts
}

// parseExplanation keeps a string explanation and defaults anything else
// (missing, null, a number the model hallucinated) to a fixed placeholder.
func parseExplanation(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil || s == "" {
		return "No explanation provided."
	}
	return s
}

// parseDifficulty defaults to 0.5 when the field is missing or not numeric.
func parseDifficulty(raw json.RawMessage) float64 {
	var f float64
	if len(raw) == 0 || string(raw) == "null" || json.Unmarshal(raw, &f) != nil {
		return 0.5
	}
	return f
}

// normalizeAnswer flattens whatever the model sent into a string. Arrays and
// objects (select_all answers) stay as compact JSON; everything else becomes
// its plain string form.
func normalizeAnswer(raw json.RawMessage) string {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return strings.Trim(string(raw), `"`)
	}
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	case bool:
		return fmt.Sprintf("%t", val)
	case float64:
		// Avoid the %v exponent form for large numbers.
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// ParseGradingResponse parses a grading reply, falling back to a manual-
// review result when the model returned something unusable.
func ParseGradingResponse(content string) models.GradingResult {
	fallback := models.GradingResult{
		Score:     0,
		IsCorrect: false,
		Feedback:  "Unable to grade response automatically. Please review manually.",
	}

	cleaned := stripCodeFence(content)
	var result models.GradingResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return fallback
	}
	if result.Feedback == "" {
		return fallback
	}
	if result.Score < 0 {
		result.Score = 0
	}
	if result.Score > 100 {
		result.Score = 100
	}
	return result
}
