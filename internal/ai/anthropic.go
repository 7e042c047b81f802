package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"quizai/internal/logger"
	"quizai/internal/models"
)

const (
	anthropicDefaultModel   = "claude-sonnet-4-20250514"
	anthropicDefaultBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"

	anthropicGenerateTokens = 4096
	anthropicGradingTokens  = 1024
	anthropicVisionTokens   = 4096
)

// anthropicProvider talks to the Messages API directly. There is no official
// Go SDK worth depending on, so the client is a thin typed HTTP wrapper with
// retry on transient failures.
type anthropicProvider struct {
	log        *logger.Logger
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	maxRetries int
}

func newAnthropicProvider(log *logger.Logger) *anthropicProvider {
	timeout := envInt("ANTHROPIC_TIMEOUT_SECONDS", 120)
	maxRetries := envInt("ANTHROPIC_MAX_RETRIES", 3)
	model := os.Getenv("ANTHROPIC_MODEL")
	if model == "" {
		model = anthropicDefaultModel
	}
	baseURL := os.Getenv("ANTHROPIC_BASE_URL")
	if baseURL == "" {
		baseURL = anthropicDefaultBaseURL
	}
	return &anthropicProvider{
		log:        log,
		httpClient: &http.Client{Timeout: time.Duration(timeout) * time.Second},
		baseURL:    baseURL,
		apiKey:     os.Getenv("ANTHROPIC_API_KEY"),
		model:      model,
		maxRetries: maxRetries,
	}
}

func (p *anthropicProvider) Name() string { return ProviderAnthropic }

type anthropicContentBlock struct {
	Type   string                `json:"type"`
	Text   string                `json:"text,omitempty"`
	Source *anthropicImageSource `json:"source,omitempty"`
}

type anthropicImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []anthropicContentBlock `json:"content"`
	Error   *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type anthropicHTTPError struct {
	StatusCode int
	Message    string
}

func (e *anthropicHTTPError) Error() string {
	return fmt.Sprintf("anthropic API error: status %d: %s", e.StatusCode, e.Message)
}

func (p *anthropicProvider) GenerateQuiz(ctx context.Context, params QuizParams) (*models.GeneratedQuiz, error) {
	raw, err := p.complete(ctx, systemMessage, []anthropicContentBlock{
		{Type: "text", Text: buildQuizPrompt(params)},
	}, anthropicGenerateTokens)
	if err != nil {
		return nil, err
	}
	return ParseQuizResponse(raw)
}

func (p *anthropicProvider) GradeAnswer(ctx context.Context, req GradeRequest) (models.GradingResult, error) {
	raw, err := p.complete(ctx, "", []anthropicContentBlock{
		{Type: "text", Text: buildGradingPrompt(req)},
	}, anthropicGradingTokens)
	if err != nil {
		return models.GradingResult{}, err
	}
	return ParseGradingResponse(raw), nil
}

func (p *anthropicProvider) ExtractImageText(ctx context.Context, prompt, mimeType string, data []byte) (string, error) {
	return p.complete(ctx, "", []anthropicContentBlock{
		{Type: "image", Source: &anthropicImageSource{
			Type:      "base64",
			MediaType: mimeType,
			Data:      base64.StdEncoding.EncodeToString(data),
		}},
		{Type: "text", Text: prompt},
	}, anthropicVisionTokens)
}

// complete sends one user message and returns the first text block.
func (p *anthropicProvider) complete(ctx context.Context, system string, content []anthropicContentBlock, maxTokens int) (string, error) {
	req := anthropicRequest{
		Model:     p.model,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  []anthropicMessage{{Role: "user", Content: content}},
	}

	resp, err := p.do(ctx, req)
	if err != nil {
		return "", err
	}
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text response from Anthropic API")
}

func (p *anthropicProvider) do(ctx context.Context, req anthropicRequest) (*anthropicResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 2 * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			p.log.Warn("retrying anthropic request", "attempt", attempt, "error", lastErr)
		}

		resp, err := p.doOnce(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var httpErr *anthropicHTTPError
		if errors.As(err, &httpErr) {
			// Only rate limits and server errors are worth retrying.
			if httpErr.StatusCode != http.StatusTooManyRequests && httpErr.StatusCode < 500 {
				return nil, err
			}
		}
	}
	return nil, lastErr
}

func (p *anthropicProvider) doOnce(ctx context.Context, req anthropicRequest) (*anthropicResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal anthropic request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read anthropic response: %w", err)
	}

	var resp anthropicResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decode anthropic response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		msg := httpResp.Status
		if resp.Error != nil {
			msg = resp.Error.Message
		}
		return nil, &anthropicHTTPError{StatusCode: httpResp.StatusCode, Message: msg}
	}
	return &resp, nil
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
