// File: internal/device/executor.go
package device

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/SerupAI/mobiledroid/api/schemas"
)

// Executor dispatches actions against a device driver. Transport failures
// are reported inside the result map, never as an error: the task loop treats
// a failed gesture as something the model should see and react to, not as a
// reason to abort the task.
type Executor struct {
	driver schemas.DeviceDriver
	logger *zap.Logger
	// sleep is replaceable in tests so post-delays do not slow the suite.
	sleep func(ctx context.Context, d time.Duration)
}

// NewExecutor creates an executor over the given driver.
func NewExecutor(driver schemas.DeviceDriver, logger *zap.Logger) *Executor {
	return &Executor{
		driver: driver,
		logger: logger.Named("executor"),
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Execute performs the action, denormalizing coordinates against the screen
// dimensions of the snapshot the action was decided on.
func (e *Executor) Execute(ctx context.Context, action schemas.Action, width, height int) map[string]any {
	e.logger.Info("executing action",
		zap.String("action", action.String()),
		zap.String("reasoning", action.Reasoning),
	)
	if len(action.Clamped) > 0 {
		e.logger.Warn("out-of-range coordinates were clamped", zap.Strings("fields", action.Clamped))
	}

	switch action.Kind {
	case schemas.KindTap:
		return e.tap(ctx, action.Tap, width, height)
	case schemas.KindDoubleTap:
		return e.doubleTap(ctx, action.DoubleTap, width, height)
	case schemas.KindSwipe:
		return e.swipe(ctx, action.Swipe, width, height)
	case schemas.KindTypeText:
		return e.typeText(ctx, action.Type)
	case schemas.KindBack:
		return e.key(ctx, "BACK")
	case schemas.KindHome:
		return e.key(ctx, "HOME")
	case schemas.KindEnter:
		return e.key(ctx, "ENTER")
	case schemas.KindWait:
		e.sleep(ctx, time.Duration(action.Wait.DurationMs)*time.Millisecond)
		return map[string]any{"success": true, "waited_ms": action.Wait.DurationMs}
	case schemas.KindDone:
		return map[string]any{"completed": true, "result": action.Done.Result}
	case schemas.KindFail:
		return map[string]any{"completed": true, "failed": true, "reason": action.Fail.Reason}
	default:
		return map[string]any{"error": fmt.Sprintf("unknown action kind: %s", action.Kind)}
	}
}

func denormalize(v float64, size int) int {
	px := int(v * float64(size))
	if px < 0 {
		px = 0
	}
	if px >= size && size > 0 {
		px = size - 1
	}
	return px
}

func (e *Executor) tap(ctx context.Context, p *schemas.TapParams, width, height int) map[string]any {
	if p == nil {
		return map[string]any{"error": "tap action missing parameters"}
	}
	x, y := denormalize(p.X, width), denormalize(p.Y, height)

	var err error
	gesture := "tap"
	if p.DurationMs > schemas.LongPressThresholdMs {
		gesture = "long_press"
		err = e.driver.LongPress(ctx, x, y, time.Duration(p.DurationMs)*time.Millisecond)
	} else {
		err = e.driver.Tap(ctx, x, y)
	}
	if err != nil {
		return map[string]any{"error": err.Error()}
	}

	e.sleep(ctx, time.Duration(p.PostDelayMs)*time.Millisecond)
	return map[string]any{"success": true, "type": gesture, "x": x, "y": y}
}

func (e *Executor) doubleTap(ctx context.Context, p *schemas.DoubleTapParams, width, height int) map[string]any {
	if p == nil {
		return map[string]any{"error": "double_tap action missing parameters"}
	}
	x, y := denormalize(p.X, width), denormalize(p.Y, height)

	if err := e.driver.Tap(ctx, x, y); err != nil {
		return map[string]any{"error": err.Error()}
	}
	e.sleep(ctx, time.Duration(p.DelayMs)*time.Millisecond)
	if err := e.driver.Tap(ctx, x, y); err != nil {
		return map[string]any{"error": err.Error()}
	}

	e.sleep(ctx, time.Duration(p.PostDelayMs)*time.Millisecond)
	return map[string]any{"success": true, "type": "double_tap", "x": x, "y": y}
}

func (e *Executor) swipe(ctx context.Context, p *schemas.SwipeParams, width, height int) map[string]any {
	if p == nil {
		return map[string]any{"error": "swipe action missing parameters"}
	}
	x1, y1 := denormalize(p.X1, width), denormalize(p.Y1, height)
	x2, y2 := denormalize(p.X2, width), denormalize(p.Y2, height)

	if err := e.driver.Swipe(ctx, x1, y1, x2, y2, time.Duration(p.DurationMs)*time.Millisecond); err != nil {
		return map[string]any{"error": err.Error()}
	}
	return map[string]any{"success": true, "x1": x1, "y1": y1, "x2": x2, "y2": y2}
}

func (e *Executor) typeText(ctx context.Context, p *schemas.TypeParams) map[string]any {
	if p == nil {
		return map[string]any{"error": "type action missing parameters"}
	}
	if err := e.driver.TypeText(ctx, p.Text); err != nil {
		return map[string]any{"error": err.Error()}
	}
	return map[string]any{"success": true, "text": p.Text}
}

func (e *Executor) key(ctx context.Context, key string) map[string]any {
	if err := e.driver.PressKey(ctx, key); err != nil {
		return map[string]any{"error": err.Error()}
	}
	return map[string]any{"success": true, "key": key}
}
