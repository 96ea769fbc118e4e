// File: internal/llmclient/openai.go
package llmclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/SerupAI/mobiledroid/api/schemas"
	"github.com/SerupAI/mobiledroid/internal/integration"
)

const openAIEndpoint = "https://api.openai.com/v1/chat/completions"

// OpenAIClient implements schemas.LLMClient against the chat-completions
// surface. It also covers every provider that exposes an OpenAI-compatible
// endpoint, which is why unknown providers land here with a base_url.
type OpenAIClient struct {
	apiKey     string
	endpoint   string
	model      string
	maxTokens  int
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

var _ schemas.LLMClient = (*OpenAIClient)(nil)

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// NewOpenAIClient builds a client from the resolved integration.
func NewOpenAIClient(in *integration.Integration, timeout time.Duration, logger *zap.Logger) (*OpenAIClient, error) {
	if in.APIKey == "" {
		return nil, fmt.Errorf("openai-compatible API key is required")
	}
	endpoint := openAIEndpoint
	if in.BaseURL != "" {
		endpoint = strings.TrimSuffix(in.BaseURL, "/") + "/chat/completions"
	}
	return &OpenAIClient{
		apiKey:     in.APIKey,
		endpoint:   endpoint,
		model:      in.Model,
		maxTokens:  in.MaxTokens,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    newLimiter(in.MaxRequestsPerHour),
		logger:     logger.Named("llm_client.openai"),
	}, nil
}

// CreateMessage implements schemas.LLMClient.
func (c *OpenAIClient) CreateMessage(ctx context.Context, req schemas.ChatRequest) (*schemas.ChatResponse, error) {
	payload := openAIRequest{
		Model:       firstNonEmpty(req.Model, c.model),
		MaxTokens:   firstPositive(req.MaxTokens, c.maxTokens),
		Temperature: req.Temperature,
	}
	if req.System != "" {
		payload.Messages = append(payload.Messages, openAIMessage{Role: "system", Content: req.System})
	}
	for _, msg := range req.Messages {
		parts := make([]openAIContentPart, 0, len(msg.Content))
		for _, part := range msg.Content {
			if len(part.PNG) > 0 {
				parts = append(parts, openAIContentPart{
					Type: "image_url",
					ImageURL: &openAIImageURL{
						URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(part.PNG),
					},
				})
				continue
			}
			parts = append(parts, openAIContentPart{Type: "text", Text: part.Text})
		}
		payload.Messages = append(payload.Messages, openAIMessage{Role: msg.Role, Content: parts})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	respBody, err := postJSON(ctx, c.httpClient, c.limiter, c.endpoint, headers, body, c.logger)
	if err != nil {
		return nil, err
	}

	var parsed openAIResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response payload: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("openai-compatible API returned no choices")
	}

	choice := parsed.Choices[0]
	if choice.Message.Content == "" {
		return nil, fmt.Errorf("openai-compatible API returned empty content (finish reason: %s)", choice.FinishReason)
	}

	c.logger.Info("LLM generation complete",
		zap.String("model", payload.Model),
		zap.Int("prompt_tokens", parsed.Usage.PromptTokens),
		zap.Int("completion_tokens", parsed.Usage.CompletionTokens),
		zap.Int("total_tokens", parsed.Usage.TotalTokens),
	)

	return &schemas.ChatResponse{
		Text:       choice.Message.Content,
		TokensUsed: parsed.Usage.TotalTokens,
	}, nil
}
