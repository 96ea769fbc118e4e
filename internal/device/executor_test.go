// File: internal/device/executor_test.go
package device

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SerupAI/mobiledroid/api/schemas"
)

func newTestExecutor(driver *fakeDriver) *Executor {
	e := NewExecutor(driver, zap.NewNop())
	e.sleep = func(ctx context.Context, d time.Duration) {}
	return e
}

func TestExecuteTapDenormalizes(t *testing.T) {
	driver := &fakeDriver{}
	e := newTestExecutor(driver)

	action := schemas.Action{
		Kind: schemas.KindTap,
		Tap:  &schemas.TapParams{X: 0.5, Y: 0.25, PostDelayMs: schemas.DefaultTapPostDelayMs},
	}
	result := e.Execute(context.Background(), action, 1080, 2400)

	assert.Equal(t, true, result["success"])
	assert.Equal(t, []string{"tap 540 600"}, driver.Calls())
}

func TestExecuteTapBecomesLongPress(t *testing.T) {
	driver := &fakeDriver{}
	e := newTestExecutor(driver)

	action := schemas.Action{
		Kind: schemas.KindTap,
		Tap:  &schemas.TapParams{X: 0.5, Y: 0.5, DurationMs: 1000},
	}
	result := e.Execute(context.Background(), action, 1000, 1000)

	assert.Equal(t, "long_press", result["type"])
	assert.Equal(t, []string{"longpress 500 500 1000"}, driver.Calls())
}

func TestExecuteTapAtEdgeStaysOnScreen(t *testing.T) {
	driver := &fakeDriver{}
	e := newTestExecutor(driver)

	action := schemas.Action{
		Kind: schemas.KindTap,
		Tap:  &schemas.TapParams{X: 1.0, Y: 1.0},
	}
	e.Execute(context.Background(), action, 1080, 2400)

	assert.Equal(t, []string{"tap 1079 2399"}, driver.Calls())
}

func TestExecuteDoubleTap(t *testing.T) {
	driver := &fakeDriver{}
	e := newTestExecutor(driver)

	action := schemas.Action{
		Kind: schemas.KindDoubleTap,
		DoubleTap: &schemas.DoubleTapParams{
			X: 0.1, Y: 0.1,
			DelayMs:     schemas.DefaultDoubleTapDelayMs,
			PostDelayMs: schemas.DefaultDoubleTapPostDelayMs,
		},
	}
	result := e.Execute(context.Background(), action, 1000, 1000)

	assert.Equal(t, true, result["success"])
	assert.Equal(t, []string{"tap 100 100", "tap 100 100"}, driver.Calls())
}

func TestExecuteSwipe(t *testing.T) {
	driver := &fakeDriver{}
	e := newTestExecutor(driver)

	action := schemas.Action{
		Kind: schemas.KindSwipe,
		Swipe: &schemas.SwipeParams{
			X1: 0.5, Y1: 0.8, X2: 0.5, Y2: 0.2,
			DurationMs: schemas.DefaultSwipeDurationMs,
		},
	}
	result := e.Execute(context.Background(), action, 1000, 1000)

	assert.Equal(t, true, result["success"])
	assert.Equal(t, []string{"swipe 500 800 500 200 300"}, driver.Calls())
}

func TestExecuteKeysAndText(t *testing.T) {
	driver := &fakeDriver{}
	e := newTestExecutor(driver)
	ctx := context.Background()

	e.Execute(ctx, schemas.Action{Kind: schemas.KindTypeText, Type: &schemas.TypeParams{Text: "hello"}}, 1000, 1000)
	e.Execute(ctx, schemas.Action{Kind: schemas.KindBack}, 1000, 1000)
	e.Execute(ctx, schemas.Action{Kind: schemas.KindHome}, 1000, 1000)
	e.Execute(ctx, schemas.Action{Kind: schemas.KindEnter}, 1000, 1000)

	assert.Equal(t, []string{"type hello", "key BACK", "key HOME", "key ENTER"}, driver.Calls())
}

func TestExecuteWait(t *testing.T) {
	driver := &fakeDriver{}
	e := NewExecutor(driver, zap.NewNop())

	var slept time.Duration
	e.sleep = func(ctx context.Context, d time.Duration) { slept = d }

	action := schemas.Action{Kind: schemas.KindWait, Wait: &schemas.WaitParams{DurationMs: 1000}}
	result := e.Execute(context.Background(), action, 1000, 1000)

	assert.Equal(t, true, result["success"])
	assert.Equal(t, time.Second, slept)
	assert.Empty(t, driver.Calls(), "wait touches nothing on the device")
}

func TestExecuteTransportErrorBecomesResult(t *testing.T) {
	driver := &fakeDriver{gestureErr: fmt.Errorf("device offline")}
	e := newTestExecutor(driver)

	action := schemas.Action{
		Kind: schemas.KindTap,
		Tap:  &schemas.TapParams{X: 0.5, Y: 0.5},
	}
	result := e.Execute(context.Background(), action, 1000, 1000)

	require.Contains(t, result, "error")
	assert.Equal(t, "device offline", result["error"])
}

func TestExecuteTerminalActions(t *testing.T) {
	driver := &fakeDriver{}
	e := newTestExecutor(driver)
	ctx := context.Background()

	done := e.Execute(ctx, schemas.DoneAction("ordered", "task complete"), 1000, 1000)
	assert.Equal(t, "ordered", done["result"])

	failed := e.Execute(ctx, schemas.FailAction("cart is empty"), 1000, 1000)
	assert.Equal(t, "cart is empty", failed["reason"])
	assert.Empty(t, driver.Calls())
}
