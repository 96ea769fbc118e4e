// File: internal/llmclient/anthropic.go
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

const (
	anthropicEndpoint = "https://api.anthropic.com/v1/messages"
	anthropicVersion  = "2023-06-01"
)

// AnthropicClient implements schemas.LLMClient against the Anthropic
// messages API.
type AnthropicClient struct {
	apiKey     string
	endpoint   string
	model      string
	maxTokens  int
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

var _ schemas.LLMClient = (*AnthropicClient)(nil)

type anthropicImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicContentBlock struct {
	Type   string                `json:"type"`
	Text   string                `json:"text,omitempty"`
	Source *anthropicImageSource `json:"source,omitempty"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Temperature float64            `json:"temperature"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// NewAnthropicClient builds a client from the resolved integration.
func NewAnthropicClient(in *integration.Integration, timeout time.Duration, logger *zap.Logger) (*AnthropicClient, error) {
	if in.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	endpoint := anthropicEndpoint
	if in.BaseURL != "" {
		endpoint = in.BaseURL + "/v1/messages"
	}
	return &AnthropicClient{
		apiKey:     in.APIKey,
		endpoint:   endpoint,
		model:      in.Model,
		maxTokens:  in.MaxTokens,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    newLimiter(in.MaxRequestsPerHour),
		logger:     logger.Named("llm_client.anthropic"),
	}, nil
}

// CreateMessage implements schemas.LLMClient.
func (c *AnthropicClient) CreateMessage(ctx context.Context, req schemas.ChatRequest) (*schemas.ChatResponse, error) {
	payload := anthropicRequest{
		Model:       firstNonEmpty(req.Model, c.model),
		MaxTokens:   firstPositive(req.MaxTokens, c.maxTokens, 1024),
		System:      req.System,
		Temperature: req.Temperature,
	}
	for _, msg := range req.Messages {
		blocks := make([]anthropicContentBlock, 0, len(msg.Content))
		for _, part := range msg.Content {
			if len(part.PNG) > 0 {
				blocks = append(blocks, anthropicContentBlock{
					Type: "image",
					Source: &anthropicImageSource{
						Type:      "base64",
						MediaType: "image/png",
						Data:      base64.StdEncoding.EncodeToString(part.PNG),
					},
				})
				continue
			}
			blocks = append(blocks, anthropicContentBlock{Type: "text", Text: part.Text})
		}
		payload.Messages = append(payload.Messages, anthropicMessage{Role: msg.Role, Content: blocks})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	headers := map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": anthropicVersion,
	}
	respBody, err := postJSON(ctx, c.httpClient, c.limiter, c.endpoint, headers, body, c.logger)
	if err != nil {
		return nil, err
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response payload: %w", err)
	}

	var text string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return nil, fmt.Errorf("anthropic API returned no text content (stop reason: %s)", parsed.StopReason)
	}

	total := parsed.Usage.InputTokens + parsed.Usage.OutputTokens
	c.logger.Info("LLM generation complete",
		zap.String("model", payload.Model),
		zap.Int("prompt_tokens", parsed.Usage.InputTokens),
		zap.Int("completion_tokens", parsed.Usage.OutputTokens),
		zap.Int("total_tokens", total),
	)

	return &schemas.ChatResponse{Text: text, TokensUsed: total}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
