// File: internal/llmclient/client_test.go
package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SerupAI/mobiledroid/api/schemas"
	"github.com/SerupAI/mobiledroid/internal/integration"
)

func testIntegration(provider, baseURL string) *integration.Integration {
	return &integration.Integration{
		Name:      "test",
		Provider:  provider,
		Model:     "test-model",
		APIKey:    "test-key",
		BaseURL:   baseURL,
		MaxTokens: 1024,
	}
}

func chatRequest() schemas.ChatRequest {
	return schemas.ChatRequest{
		System: "You control a phone.",
		Messages: []schemas.Message{
			{Role: "user", Content: []schemas.ContentPart{
				{Text: "Step 1"},
				{PNG: []byte{0x89, 0x50, 0x4e, 0x47}},
			}},
			{Role: "assistant", Content: []schemas.ContentPart{
				{Text: `{"action":"tap","x":0.5,"y":0.5}`},
			}},
		},
	}
}

func TestAnthropicCreateMessage(t *testing.T) {
	var gotBody map[string]any
	var gotHeaders http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &gotBody))
		fmt.Fprint(w, `{
			"content": [{"type": "text", "text": "{\"action\":\"done\",\"result\":\"ok\"}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 120, "output_tokens": 30}
		}`)
	}))
	defer server.Close()

	client, err := NewAnthropicClient(testIntegration("anthropic", server.URL), 5*time.Second, zap.NewNop())
	require.NoError(t, err)

	resp, err := client.CreateMessage(context.Background(), chatRequest())
	require.NoError(t, err)
	assert.Equal(t, `{"action":"done","result":"ok"}`, resp.Text)
	assert.Equal(t, 150, resp.TokensUsed)

	assert.Equal(t, "test-key", gotHeaders.Get("x-api-key"))
	assert.Equal(t, anthropicVersion, gotHeaders.Get("anthropic-version"))
	assert.Equal(t, "You control a phone.", gotBody["system"])

	messages := gotBody["messages"].([]any)
	require.Len(t, messages, 2)
	first := messages[0].(map[string]any)
	blocks := first["content"].([]any)
	require.Len(t, blocks, 2)
	image := blocks[1].(map[string]any)
	assert.Equal(t, "image", image["type"])
	source := image["source"].(map[string]any)
	assert.Equal(t, "base64", source["type"])
	assert.Equal(t, "image/png", source["media_type"])
}

func TestGeminiCreateMessage(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &gotBody))
		fmt.Fprint(w, `{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "answer"}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 100, "candidatesTokenCount": 20, "totalTokenCount": 120}
		}`)
	}))
	defer server.Close()

	client, err := NewGeminiClient(testIntegration("google", server.URL), 5*time.Second, zap.NewNop())
	require.NoError(t, err)

	resp, err := client.CreateMessage(context.Background(), chatRequest())
	require.NoError(t, err)
	assert.Equal(t, "answer", resp.Text)
	assert.Equal(t, 120, resp.TokensUsed)

	contents := gotBody["contents"].([]any)
	require.Len(t, contents, 2)
	assert.Equal(t, "user", contents[0].(map[string]any)["role"])
	assert.Equal(t, "model", contents[1].(map[string]any)["role"], "assistant turns become the model role")

	parts := contents[0].(map[string]any)["parts"].([]any)
	require.Len(t, parts, 2)
	inline := parts[1].(map[string]any)["inline_data"].(map[string]any)
	assert.Equal(t, "image/png", inline["mime_type"])
}

func TestGeminiNoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates": []}`)
	}))
	defer server.Close()

	client, err := NewGeminiClient(testIntegration("google", server.URL), 5*time.Second, zap.NewNop())
	require.NoError(t, err)

	_, err = client.CreateMessage(context.Background(), chatRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no candidates")
}

func TestOpenAICreateMessage(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &gotBody))
		fmt.Fprint(w, `{
			"choices": [{"message": {"content": "reply"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 80, "completion_tokens": 10, "total_tokens": 90}
		}`)
	}))
	defer server.Close()

	client, err := NewOpenAIClient(testIntegration("openai", server.URL+"/v1"), 5*time.Second, zap.NewNop())
	require.NoError(t, err)

	resp, err := client.CreateMessage(context.Background(), chatRequest())
	require.NoError(t, err)
	assert.Equal(t, "reply", resp.Text)
	assert.Equal(t, 90, resp.TokensUsed)

	messages := gotBody["messages"].([]any)
	require.Len(t, messages, 3, "system turn plus two conversation turns")
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])

	userParts := messages[1].(map[string]any)["content"].([]any)
	image := userParts[1].(map[string]any)["image_url"].(map[string]any)
	assert.Contains(t, image["url"], "data:image/png;base64,")
}

func TestTransientErrorsAreRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{
			"choices": [{"message": {"content": "eventually"}, "finish_reason": "stop"}],
			"usage": {"total_tokens": 5}
		}`)
	}))
	defer server.Close()

	client, err := NewOpenAIClient(testIntegration("openai", server.URL+"/v1"), 5*time.Second, zap.NewNop())
	require.NoError(t, err)

	resp, err := client.CreateMessage(context.Background(), chatRequest())
	require.NoError(t, err)
	assert.Equal(t, "eventually", resp.Text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPermanentErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error": "bad key"}`)
	}))
	defer server.Close()

	client, err := NewAnthropicClient(testIntegration("anthropic", server.URL), 5*time.Second, zap.NewNop())
	require.NoError(t, err)

	_, err = client.CreateMessage(context.Background(), chatRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.Equal(t, int32(1), calls.Load())
}

func TestFactorySelectsProvider(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		baseURL  string
		wantType any
		wantErr  bool
	}{
		{name: "anthropic", provider: "anthropic", wantType: (*AnthropicClient)(nil)},
		{name: "google", provider: "google", wantType: (*GeminiClient)(nil)},
		{name: "gemini alias", provider: "gemini", wantType: (*GeminiClient)(nil)},
		{name: "openai", provider: "openai", wantType: (*OpenAIClient)(nil)},
		{name: "compatible with base url", provider: "together", baseURL: "https://api.together.xyz/v1", wantType: (*OpenAIClient)(nil)},
		{name: "unknown without base url", provider: "mystery", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client, err := New(testIntegration(tc.provider, tc.baseURL), 5*time.Second, zap.NewNop())
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tc.wantType, client)
		})
	}
}

func TestFactoryRequiresAPIKey(t *testing.T) {
	in := testIntegration("anthropic", "")
	in.APIKey = ""
	_, err := New(in, 5*time.Second, zap.NewNop())
	require.Error(t, err)
}
