// Package ai holds the provider adapters and the generation pipeline that
// turns sanitized study material into a validated quiz.
package ai

import (
	"context"
	"fmt"
	"os"
	"strings"

	"quizai/internal/logger"
	"quizai/internal/models"
)

// Provider names accepted in API requests and DEFAULT_AI_PROVIDER.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderLocalCLI  = "local-cli"
)

// QuizParams describes one generation request. StudyMaterial must already be
// sanitized by the caller.
type QuizParams struct {
	StudyMaterial string
	QuestionCount int
	Difficulty    models.Difficulty
	QuestionTypes []models.QuestionType
}

// GradeRequest describes one free-text answer to grade.
type GradeRequest struct {
	Question      string
	CorrectAnswer string
	UserAnswer    string
	QuestionType  models.QuestionType
}

// Provider is one AI backend. ExtractImageText returns ErrNoVision for
// backends without image support.
type Provider interface {
	Name() string
	GenerateQuiz(ctx context.Context, params QuizParams) (*models.GeneratedQuiz, error)
	GradeAnswer(ctx context.Context, req GradeRequest) (models.GradingResult, error)
	ExtractImageText(ctx context.Context, prompt, mimeType string, data []byte) (string, error)
}

var ErrNoVision = fmt.Errorf("provider does not support image input")

// Registry holds the configured providers. Providers register only when
// their credentials (or the CLI gate) are present.
type Registry struct {
	providers   map[string]Provider
	defaultName string
}

// NewRegistry builds providers from the environment. It fails only when no
// provider at all can be configured; a missing individual key just leaves
// that provider out.
func NewRegistry(log *logger.Logger) (*Registry, error) {
	r := &Registry{providers: make(map[string]Provider)}

	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		r.providers[ProviderAnthropic] = newAnthropicProvider(log)
	}
	if os.Getenv("OPENAI_API_KEY") != "" {
		r.providers[ProviderOpenAI] = newOpenAIProvider(log)
	}
	if os.Getenv("GEMINI_API_KEY") != "" {
		p, err := newGeminiProvider(context.Background(), log)
		if err != nil {
			return nil, fmt.Errorf("gemini provider: %w", err)
		}
		r.providers[ProviderGemini] = p
	}
	if os.Getenv("CLI_PROVIDER_ENABLED") == "true" {
		r.providers[ProviderLocalCLI] = newLocalCLIProvider(log)
	}

	if len(r.providers) == 0 {
		return nil, fmt.Errorf("no AI provider configured: set ANTHROPIC_API_KEY, OPENAI_API_KEY, GEMINI_API_KEY or CLI_PROVIDER_ENABLED")
	}

	r.defaultName = strings.TrimSpace(os.Getenv("DEFAULT_AI_PROVIDER"))
	if r.defaultName == "" {
		r.defaultName = ProviderAnthropic
	}
	if _, ok := r.providers[r.defaultName]; !ok {
		// Fall back to any configured provider rather than failing every
		// request at runtime.
		for name := range r.providers {
			r.defaultName = name
			break
		}
	}
	return r, nil
}

// NewRegistryWith builds a registry from explicit providers. Used by tests
// and anywhere env-driven construction is not wanted.
func NewRegistryWith(defaultName string, providers map[string]Provider) *Registry {
	return &Registry{providers: providers, defaultName: defaultName}
}

// Get resolves a provider by name; empty name means the default.
func (r *Registry) Get(name string) (Provider, error) {
	if name == "" {
		name = r.defaultName
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown AI provider: %s", name)
	}
	return p, nil
}

func (r *Registry) DefaultName() string { return r.defaultName }

// Vision returns a provider able to read images, preferring the default one.
// Returns nil when none of the configured providers supports vision.
func (r *Registry) Vision() Provider {
	if p, ok := r.providers[r.defaultName]; ok && r.defaultName != ProviderLocalCLI {
		return p
	}
	for _, name := range []string{ProviderGemini, ProviderOpenAI, ProviderAnthropic} {
		if p, ok := r.providers[name]; ok {
			return p
		}
	}
	return nil
}
