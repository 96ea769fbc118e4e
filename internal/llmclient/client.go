// File: internal/llmclient/client.go
// Description: Shared HTTP plumbing for the provider clients. Every provider
// speaks JSON-over-POST with an API key header, so the retry loop, transient
// status handling and rate limiting live here once.

package llmclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// newLimiter derives a request limiter from an integration's hourly budget.
// A zero or negative budget means unlimited.
func newLimiter(maxPerHour int) *rate.Limiter {
	if maxPerHour <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(float64(maxPerHour)/3600.0), 1)
}

// postJSON sends the payload and returns the response body, retrying network
// errors and transient statuses (429/500/503) with exponential backoff. Any
// other non-200 status is permanent.
func postJSON(ctx context.Context, client *http.Client, limiter *rate.Limiter, url string, headers map[string]string, payload []byte, logger *zap.Logger) ([]byte, error) {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Minute
	b.MaxInterval = 30 * time.Second

	var respBody []byte

	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			httpReq.Header.Set(k, v)
		}

		start := time.Now()
		resp, err := client.Do(httpReq)
		if err != nil {
			logger.Warn("network error during LLM request, retrying", zap.Error(err))
			return fmt.Errorf("failed to execute HTTP request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("LLM API error: status %d, body: %s", resp.StatusCode, string(body))
			switch resp.StatusCode {
			case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
				logger.Warn("transient LLM API error, retrying",
					zap.Int("status", resp.StatusCode),
					zap.Duration("duration", time.Since(start)),
				)
				return err
			default:
				return backoff.Permanent(err)
			}
		}

		respBody = body
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return respBody, nil
}
