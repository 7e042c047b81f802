package ai

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"quizai/internal/logger"
	"quizai/internal/models"
)

const (
	cliGenerateTimeout = 120 * time.Second
	cliGradingTimeout  = 60 * time.Second

	// cliMaterialExcerpt bounds the study material passed to the CLI; local
	// invocations are slower than API calls and do not need the full text.
	cliMaterialExcerpt = 3000
)

// localCLIProvider shells out to a locally installed AI CLI. The prompt is
// always delivered over stdin: building a shell string from user-derived
// text would be a command injection waiting to happen.
type localCLIProvider struct {
	log             *logger.Logger
	command         string
	args            []string
	generateTimeout time.Duration
	gradingTimeout  time.Duration
}

func newLocalCLIProvider(log *logger.Logger) *localCLIProvider {
	command := os.Getenv("CLI_PROVIDER_COMMAND")
	if command == "" {
		command = "claude"
	}
	args := []string{"-p"}
	if raw := os.Getenv("CLI_PROVIDER_ARGS"); raw != "" {
		args = strings.Fields(raw)
	}
	return &localCLIProvider{
		log:             log,
		command:         command,
		args:            args,
		generateTimeout: cliGenerateTimeout,
		gradingTimeout:  cliGradingTimeout,
	}
}

func (p *localCLIProvider) Name() string { return ProviderLocalCLI }

func (p *localCLIProvider) GenerateQuiz(ctx context.Context, params QuizParams) (*models.GeneratedQuiz, error) {
	out, err := p.run(ctx, p.generateTimeout, buildCLIQuizPrompt(params))
	if err != nil {
		return nil, fmt.Errorf("failed to generate quiz with CLI provider: %w", err)
	}
	return ParseQuizResponse(out)
}

func (p *localCLIProvider) GradeAnswer(ctx context.Context, req GradeRequest) (models.GradingResult, error) {
	prompt := fmt.Sprintf(`Grade this %s response.
Question: %s
Expected answer: %s
Student answer: %s

Return ONLY JSON: {"score": 0-100, "isCorrect": true/false, "feedback": "explanation"}`,
		req.QuestionType, req.Question, req.CorrectAnswer, req.UserAnswer)

	out, err := p.run(ctx, p.gradingTimeout, prompt)
	if err != nil {
		return ParseGradingResponse(""), nil
	}
	return ParseGradingResponse(out), nil
}

func (p *localCLIProvider) ExtractImageText(ctx context.Context, prompt, mimeType string, data []byte) (string, error) {
	return "", ErrNoVision
}

func (p *localCLIProvider) run(ctx context.Context, timeout time.Duration, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.command, p.args...)
	cmd.Stdin = strings.NewReader(prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("CLI provider timed out after %ds", int(timeout.Seconds()))
		}
		p.log.Error("CLI provider execution failed", "error", err, "stderr", stderr.String())
		return "", fmt.Errorf("CLI provider execution failed: %w", err)
	}
	return stdout.String(), nil
}

// buildCLIQuizPrompt is a compact variant of the generation prompt. The
// material excerpt keeps local runs fast; the JSON contract is identical.
func buildCLIQuizPrompt(params QuizParams) string {
	material := params.StudyMaterial
	if runes := []rune(material); len(runes) > cliMaterialExcerpt {
		material = string(runes[:cliMaterialExcerpt])
	}
	types := make([]string, len(params.QuestionTypes))
	for i, t := range params.QuestionTypes {
		types[i] = string(t)
	}

	return fmt.Sprintf(`Generate a quiz with the following specifications:
- Number of questions: %d
- Difficulty: %s
- Question types: %s
- Difficulty instructions: %s

Study material:
%s

Return ONLY valid JSON in this exact format (no markdown, no explanation):
{
  "title": "Quiz Title Based on Content",
  "questions": [
    {
      "type": "multiple_choice|essay|short_answer|true_false|select_all",
      "content": "Question text",
      "options": ["A) Option", "B) Option", "C) Option", "D) Option"] or null for essay/short_answer,
      "correctAnswer": "A" or ["A", "C"] for select_all or "true"/"false" for true_false,
      "explanation": "Why this is correct",
      "difficulty": 0.5
    }
  ]
}`,
		params.QuestionCount,
		strings.ReplaceAll(string(params.Difficulty), "_", " "),
		strings.Join(types, ", "),
		difficultyInstructions[params.Difficulty],
		material,
	)
}
