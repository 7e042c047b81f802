package sanitize

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"quizai/internal/models"
)

const (
	maxTitleLength   = 500
	maxContentLength = 5000
	maxQuestionCount = 100
)

// ValidateQuizResponse is the structural second pass over a parsed AI quiz.
// The parser guarantees shape; this guards bounds before anything touches
// the database.
func ValidateQuizResponse(quiz *models.GeneratedQuiz) error {
	if quiz == nil {
		return fmt.Errorf("invalid quiz response: quiz is nil")
	}
	if strings.TrimSpace(quiz.Title) == "" {
		return fmt.Errorf("invalid quiz response: title is empty")
	}
	if utf8.RuneCountInString(quiz.Title) > maxTitleLength {
		return fmt.Errorf("invalid quiz response: title exceeds %d characters", maxTitleLength)
	}
	if len(quiz.Questions) == 0 {
		return fmt.Errorf("invalid quiz response: no questions")
	}
	if len(quiz.Questions) > maxQuestionCount {
		return fmt.Errorf("invalid quiz response: %d questions exceeds maximum of %d", len(quiz.Questions), maxQuestionCount)
	}
	for i, q := range quiz.Questions {
		if !q.Type.Valid() {
			return fmt.Errorf("invalid quiz response: question %d has unknown type %q", i+1, q.Type)
		}
		if strings.TrimSpace(q.Content) == "" {
			return fmt.Errorf("invalid quiz response: question %d has empty content", i+1)
		}
		if utf8.RuneCountInString(q.Content) > maxContentLength {
			return fmt.Errorf("invalid quiz response: question %d content exceeds %d characters", i+1, maxContentLength)
		}
		if strings.TrimSpace(q.CorrectAnswer) == "" {
			return fmt.Errorf("invalid quiz response: question %d is missing a correct answer", i+1)
		}
	}
	return nil
}
