package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"quizai/internal/logger"
	"quizai/internal/models"
)

const (
	openaiDefaultModel = "gpt-4-turbo-preview"

	openaiGenerateTokens = 4096
	openaiGradingTokens  = 1024

	// Reasoning models spend completion tokens on internal deliberation, so
	// the visible-output budget has to be much larger.
	openaiReasoningGenerateTokens = 16384
	openaiReasoningGradingTokens  = 4096

	openaiGenerateTemperature = 0.7
	openaiGradingTemperature  = 0.3
)

type openaiProvider struct {
	log    *logger.Logger
	client *openai.Client
	model  string
}

func newOpenAIProvider(log *logger.Logger) *openaiProvider {
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = openaiDefaultModel
	}
	cfg := openai.DefaultConfig(os.Getenv("OPENAI_API_KEY"))
	if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
		cfg.BaseURL = base
	}
	return &openaiProvider{
		log:    log,
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (p *openaiProvider) Name() string { return ProviderOpenAI }

// isReasoningModel detects the model families that reject sampling
// parameters and meter deliberation tokens separately.
func isReasoningModel(model string) bool {
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5"} {
		if model == prefix || strings.HasPrefix(model, prefix+"-") {
			return true
		}
	}
	return false
}

func (p *openaiProvider) GenerateQuiz(ctx context.Context, params QuizParams) (*models.GeneratedQuiz, error) {
	raw, err := p.chat(ctx, buildQuizPrompt(params), openaiGenerateTokens, openaiReasoningGenerateTokens, openaiGenerateTemperature)
	if err != nil {
		return nil, err
	}
	return ParseQuizResponse(raw)
}

func (p *openaiProvider) GradeAnswer(ctx context.Context, req GradeRequest) (models.GradingResult, error) {
	raw, err := p.chat(ctx, buildGradingPrompt(req), openaiGradingTokens, openaiReasoningGradingTokens, openaiGradingTemperature)
	if err != nil {
		return models.GradingResult{}, err
	}
	return ParseGradingResponse(raw), nil
}

func (p *openaiProvider) chat(ctx context.Context, prompt string, maxTokens, reasoningTokens int, temperature float32) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemMessage},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}
	if isReasoningModel(p.model) {
		// These models reject explicit temperature and the legacy max_tokens
		// field.
		req.MaxCompletionTokens = reasoningTokens
	} else {
		req.MaxTokens = maxTokens
		req.Temperature = temperature
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("no response from OpenAI API")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *openaiProvider) ExtractImageText(ctx context.Context, prompt, mimeType string, data []byte) (string, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))

	req := openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
						URL:    dataURL,
						Detail: openai.ImageURLDetailAuto,
					}},
				},
			},
		},
	}
	if !isReasoningModel(p.model) {
		req.MaxTokens = openaiGenerateTokens
	} else {
		req.MaxCompletionTokens = openaiReasoningGenerateTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai vision request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI API")
	}
	return resp.Choices[0].Message.Content, nil
}
