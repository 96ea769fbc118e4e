// File: internal/llmclient/factory.go
package llmclient

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/SerupAI/mobiledroid/api/schemas"
	"github.com/SerupAI/mobiledroid/internal/integration"
)

// New creates the provider client for a resolved integration. Providers
// without a native client are assumed to expose an OpenAI-compatible surface
// and must carry a base_url.
func New(in *integration.Integration, timeout time.Duration, logger *zap.Logger) (schemas.LLMClient, error) {
	switch strings.ToLower(in.Provider) {
	case "anthropic":
		return NewAnthropicClient(in, timeout, logger)
	case "google", "gemini":
		return NewGeminiClient(in, timeout, logger)
	case "openai":
		return NewOpenAIClient(in, timeout, logger)
	default:
		if in.BaseURL == "" {
			return nil, fmt.Errorf("provider %q has no native client and no base_url for the openai-compatible one", in.Provider)
		}
		logger.Debug("using openai-compatible client for provider",
			zap.String("provider", in.Provider),
			zap.String("base_url", in.BaseURL),
		)
		return NewOpenAIClient(in, timeout, logger)
	}
}
