// File: internal/llmclient/gemini.go
package llmclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/SerupAI/mobiledroid/api/schemas"
	"github.com/SerupAI/mobiledroid/internal/integration"
)

// GeminiClient implements schemas.LLMClient against the Google Gemini
// generateContent API.
type GeminiClient struct {
	apiKey     string
	endpoint   string
	model      string
	maxTokens  int
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

var _ schemas.LLMClient = (*GeminiClient)(nil)

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"system_instruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// NewGeminiClient builds a client from the resolved integration.
func NewGeminiClient(in *integration.Integration, timeout time.Duration, logger *zap.Logger) (*GeminiClient, error) {
	if in.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	endpoint := in.BaseURL
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent", in.Model)
	}
	return &GeminiClient{
		apiKey:     in.APIKey,
		endpoint:   endpoint,
		model:      in.Model,
		maxTokens:  in.MaxTokens,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    newLimiter(in.MaxRequestsPerHour),
		logger:     logger.Named("llm_client.gemini"),
	}, nil
}

// CreateMessage implements schemas.LLMClient.
func (c *GeminiClient) CreateMessage(ctx context.Context, req schemas.ChatRequest) (*schemas.ChatResponse, error) {
	payload := geminiRequest{
		GenerationConfig: geminiGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: firstPositive(req.MaxTokens, c.maxTokens),
		},
	}
	if req.System != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	for _, msg := range req.Messages {
		// Gemini calls the assistant role "model".
		role := msg.Role
		if role == "assistant" {
			role = "model"
		}
		parts := make([]geminiPart, 0, len(msg.Content))
		for _, part := range msg.Content {
			if len(part.PNG) > 0 {
				parts = append(parts, geminiPart{InlineData: &geminiInlineData{
					MimeType: "image/png",
					Data:     base64.StdEncoding.EncodeToString(part.PNG),
				}})
				continue
			}
			parts = append(parts, geminiPart{Text: part.Text})
		}
		payload.Contents = append(payload.Contents, geminiContent{Role: role, Parts: parts})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	headers := map[string]string{"x-goog-api-key": c.apiKey}
	respBody, err := postJSON(ctx, c.httpClient, c.limiter, c.endpoint, headers, body, c.logger)
	if err != nil {
		return nil, err
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response payload: %w", err)
	}
	if len(parsed.Candidates) == 0 {
		return nil, fmt.Errorf("gemini API returned no candidates")
	}

	candidate := parsed.Candidates[0]
	if len(candidate.Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini API returned empty content parts (reason: %s)", candidate.FinishReason)
	}

	var text string
	for _, part := range candidate.Content.Parts {
		text += part.Text
	}

	c.logger.Info("LLM generation complete",
		zap.String("model", c.model),
		zap.Int("prompt_tokens", parsed.UsageMetadata.PromptTokenCount),
		zap.Int("completion_tokens", parsed.UsageMetadata.CandidatesTokenCount),
		zap.Int("total_tokens", parsed.UsageMetadata.TotalTokenCount),
	)

	return &schemas.ChatResponse{
		Text:       text,
		TokensUsed: parsed.UsageMetadata.TotalTokenCount,
	}, nil
}
