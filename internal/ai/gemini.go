package ai

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"quizai/internal/logger"
	"quizai/internal/models"
)

const geminiDefaultModel = "gemini-2.0-flash"

type geminiProvider struct {
	log    *logger.Logger
	client *genai.Client
	model  string
}

func newGeminiProvider(ctx context.Context, log *logger.Logger) (*geminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(os.Getenv("GEMINI_API_KEY")))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		model = geminiDefaultModel
	}
	return &geminiProvider{log: log, client: client, model: model}, nil
}

func (p *geminiProvider) Name() string { return ProviderGemini }

func (p *geminiProvider) Close() {
	if p.client != nil {
		p.client.Close()
	}
}

// generativeModel returns a configured model handle. A fresh handle per call
// keeps per-task settings from leaking between concurrent requests.
func (p *geminiProvider) generativeModel(jsonOutput bool, maxTokens int32, temperature float32) *genai.GenerativeModel {
	model := p.client.GenerativeModel(p.model)
	if jsonOutput {
		model.ResponseMIMEType = "application/json"
	}
	model.SetTemperature(temperature)
	model.SetTopK(40)
	model.SetTopP(0.95)
	model.SetMaxOutputTokens(maxTokens)
	return model
}

func (p *geminiProvider) GenerateQuiz(ctx context.Context, params QuizParams) (*models.GeneratedQuiz, error) {
	model := p.generativeModel(true, 8192, 0.7)
	raw, err := p.generate(ctx, model, genai.Text(buildQuizPrompt(params)))
	if err != nil {
		return nil, err
	}
	return ParseQuizResponse(raw)
}

func (p *geminiProvider) GradeAnswer(ctx context.Context, req GradeRequest) (models.GradingResult, error) {
	model := p.generativeModel(true, 1024, 0.3)
	raw, err := p.generate(ctx, model, genai.Text(buildGradingPrompt(req)))
	if err != nil {
		return models.GradingResult{}, err
	}
	return ParseGradingResponse(raw), nil
}

func (p *geminiProvider) ExtractImageText(ctx context.Context, prompt, mimeType string, data []byte) (string, error) {
	model := p.generativeModel(false, 8192, 0.2)
	format := strings.TrimPrefix(mimeType, "image/")
	return p.generate(ctx, model,
		genai.Text(prompt),
		genai.Blob{MIMEType: "image/" + format, Data: data},
	)
}

func (p *geminiProvider) generate(ctx context.Context, model *genai.GenerativeModel, parts ...genai.Part) (string, error) {
	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from Gemini API")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no text response from Gemini API")
	}
	return sb.String(), nil
}
