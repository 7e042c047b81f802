package ai

import (
	"context"
	"fmt"

	"quizai/internal/logger"
	"quizai/internal/models"
	"quizai/internal/sanitize"
)

// MaxAnswerLength caps a user answer submitted for AI grading.
const MaxAnswerLength = 10000

// Generator runs the full generation pipeline: sanitize the material, call
// the selected provider, then validate the parsed result before it reaches
// persistence.
type Generator struct {
	log *logger.Logger
	san *sanitize.Sanitizer
	reg *Registry
}

func NewGenerator(log *logger.Logger, san *sanitize.Sanitizer, reg *Registry) *Generator {
	return &Generator{log: log, san: san, reg: reg}
}

func (g *Generator) Generate(ctx context.Context, providerName string, params QuizParams) (*models.GeneratedQuiz, error) {
	provider, err := g.reg.Get(providerName)
	if err != nil {
		return nil, err
	}

	cleaned := g.san.Clean(params.StudyMaterial, sanitize.DefaultMaxLength)
	params.StudyMaterial = cleaned.Text

	g.log.Security(logger.EventAIRequest,
		"provider", provider.Name(),
		"questionCount", params.QuestionCount,
		"difficulty", params.Difficulty,
		"materialLength", len(params.StudyMaterial),
		"inputSanitized", cleaned.Modified,
		"patternsDetected", len(cleaned.Patterns),
	)

	quiz, err := provider.GenerateQuiz(ctx, params)
	if err != nil {
		g.log.Security(logger.EventAIError, "provider", provider.Name(), "error", err.Error())
		return nil, err
	}

	if err := sanitize.ValidateQuizResponse(quiz); err != nil {
		g.log.Security(logger.EventAIError, "provider", provider.Name(), "error", err.Error())
		return nil, err
	}

	g.log.Security(logger.EventAIResponse,
		"provider", provider.Name(),
		"questionCount", len(quiz.Questions),
	)
	return quiz, nil
}

// Grade grades one free-text answer. Only essay and short_answer questions
// are AI-graded; everything else is deterministic and handled inline by the
// attempts handler.
func (g *Generator) Grade(ctx context.Context, providerName string, req GradeRequest) (models.GradingResult, error) {
	if req.QuestionType != models.QuestionEssay && req.QuestionType != models.QuestionShortAnswer {
		return models.GradingResult{}, fmt.Errorf("question type %s is not AI-graded", req.QuestionType)
	}

	provider, err := g.reg.Get(providerName)
	if err != nil {
		return models.GradingResult{}, err
	}

	cleaned := g.san.Clean(req.UserAnswer, MaxAnswerLength)
	req.UserAnswer = cleaned.Text

	g.log.Security(logger.EventAIRequest,
		"provider", provider.Name(),
		"operation", "grade",
		"questionType", req.QuestionType,
		"answerLength", len(req.UserAnswer),
	)

	result, err := provider.GradeAnswer(ctx, req)
	if err != nil {
		g.log.Security(logger.EventAIError, "provider", provider.Name(), "operation", "grade", "error", err.Error())
		return models.GradingResult{}, err
	}

	g.log.Security(logger.EventAIResponse,
		"provider", provider.Name(),
		"operation", "grade",
		"score", result.Score,
	)
	return result, nil
}

