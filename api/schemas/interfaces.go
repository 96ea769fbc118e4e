// File: api/schemas/interfaces.go
// Description: Interfaces shared across packages. Defining them here keeps the
// agent loop decoupled from the concrete device and LLM implementations, which
// is what makes the loop testable without hardware or network access.

package schemas

import (
	"context"
	"time"
)

// DeviceDriver abstracts the remote touchscreen device. All calls are
// synchronous and may fail with a transport error; the task loop surfaces
// those as step results rather than aborting the task.
type DeviceDriver interface {
	// Screenshot captures the current screen as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)

	// UIHierarchy returns the raw accessibility-tree XML dump.
	UIHierarchy(ctx context.Context) (string, error)

	// ScreenSize reports the device resolution in pixels.
	ScreenSize(ctx context.Context) (width, height int, err error)

	Tap(ctx context.Context, x, y int) error
	LongPress(ctx context.Context, x, y int, hold time.Duration) error
	Swipe(ctx context.Context, x1, y1, x2, y2 int, duration time.Duration) error
	TypeText(ctx context.Context, text string) error
	PressKey(ctx context.Context, key string) error
}

// ContentPart is one piece of a multimodal message turn: either text or an
// inline PNG image.
type ContentPart struct {
	Text string
	PNG  []byte
}

// Message is a single conversation turn.
type Message struct {
	Role    string // "user" or "assistant"
	Content []ContentPart
}

// ChatRequest is a single decision call to a language model.
type ChatRequest struct {
	System      string
	Messages    []Message
	Model       string
	MaxTokens   int
	Temperature float64
}

// ChatResponse carries the model's raw text and the tokens the call consumed.
type ChatResponse struct {
	Text       string
	TokensUsed int
}

// LLMClient is a provider-specific decision client. Implementations own their
// transport concerns (timeouts, retry of transient failures, rate limiting);
// the task loop never retries a failed call itself.
type LLMClient interface {
	CreateMessage(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// StepSink receives step records as they are produced, for persistence or
// live streaming. Implementations must not block; an error from OnStep is
// logged by the loop and never fails the task.
type StepSink interface {
	OnStep(record StepRecord) error
}
