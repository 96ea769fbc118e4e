// File: api/schemas/action.go
package schemas

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ActionKind enumerates every discrete operation the engine can issue against
// a device. The set is closed: decoding an unknown kind is an error.
type ActionKind string

const (
	KindTap       ActionKind = "tap"
	KindDoubleTap ActionKind = "double_tap"
	KindSwipe     ActionKind = "swipe"
	KindTypeText  ActionKind = "type"
	KindBack      ActionKind = "back"
	KindHome      ActionKind = "home"
	KindEnter     ActionKind = "enter"
	KindWait      ActionKind = "wait"
	KindDone      ActionKind = "done"
	KindFail      ActionKind = "fail"
)

// Wire-format defaults applied when the model omits optional fields.
const (
	DefaultTapPostDelayMs       = 300
	DefaultDoubleTapDelayMs     = 300
	DefaultDoubleTapPostDelayMs = 800
	DefaultSwipeDurationMs      = 300
	DefaultWaitDurationMs       = 1000

	// A tap held at least this long is dispatched as a long press.
	LongPressThresholdMs = 500
)

// TapParams positions a single (or long) press. Coordinates are normalized to
// the screen: 0.0 is the left/top edge, 1.0 the right/bottom edge.
type TapParams struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	DurationMs  int     `json:"duration_ms,omitempty"`
	PostDelayMs int     `json:"post_delay_ms"`
}

// DoubleTapParams describes two taps at the same point separated by DelayMs.
type DoubleTapParams struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	DelayMs     int     `json:"delay_ms"`
	PostDelayMs int     `json:"post_delay_ms"`
}

// SwipeParams describes a drag gesture between two normalized points.
type SwipeParams struct {
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	DurationMs int     `json:"duration_ms"`
}

// TypeParams carries text for the currently focused input field.
type TypeParams struct {
	Text string `json:"text"`
}

// WaitParams pauses the loop without touching the device.
type WaitParams struct {
	DurationMs int `json:"duration_ms"`
}

// DoneParams terminates the task successfully with a result summary.
type DoneParams struct {
	Result string `json:"result"`
}

// FailParams terminates the task unsuccessfully with a reason.
type FailParams struct {
	Reason string `json:"reason"`
}

// Action is a tagged union over device operations. Exactly the parameter
// struct matching Kind is non-nil; key presses (back, home, enter) carry no
// parameters. Actions are immutable once built and consumed exactly once by
// the executor.
type Action struct {
	Kind      ActionKind       `json:"action"`
	Reasoning string           `json:"reasoning,omitempty"`
	Tap       *TapParams       `json:"-"`
	DoubleTap *DoubleTapParams `json:"-"`
	Swipe     *SwipeParams     `json:"-"`
	Type      *TypeParams      `json:"-"`
	Wait      *WaitParams      `json:"-"`
	Done      *DoneParams      `json:"-"`
	Fail      *FailParams      `json:"-"`

	// Clamped lists coordinate fields that were outside [0, 1] on decode and
	// were pulled back into range. Not part of the wire format.
	Clamped []string `json:"-"`
}

// wireAction is the flat JSON shape the model speaks. Pointer fields
// distinguish "absent" from zero so documented defaults can be applied.
type wireAction struct {
	Action      string   `json:"action"`
	Reasoning   string   `json:"reasoning"`
	X           *float64 `json:"x"`
	Y           *float64 `json:"y"`
	X1          *float64 `json:"x1"`
	Y1          *float64 `json:"y1"`
	X2          *float64 `json:"x2"`
	Y2          *float64 `json:"y2"`
	DurationMs  *int     `json:"duration_ms"`
	DelayMs     *int     `json:"delay_ms"`
	PostDelayMs *int     `json:"post_delay_ms"`
	Text        *string  `json:"text"`
	Result      *string  `json:"result"`
	Reason      *string  `json:"reason"`
}

// FailAction builds a synthetic fail action carrying a diagnostic. Used by the
// parser and the loop so malformed model output terminates cleanly instead of
// crashing.
func FailAction(reason string) Action {
	return Action{
		Kind:      KindFail,
		Reasoning: reason,
		Fail:      &FailParams{Reason: reason},
	}
}

// DoneAction builds a done action with the given result summary.
func DoneAction(result, reasoning string) Action {
	return Action{
		Kind:      KindDone,
		Reasoning: reasoning,
		Done:      &DoneParams{Result: result},
	}
}

// KeyAction builds a parameterless key-press action (back, home or enter).
func KeyAction(kind ActionKind, reasoning string) Action {
	return Action{Kind: kind, Reasoning: reasoning}
}

func clamp01(v float64, name string, clamped *[]string) float64 {
	switch {
	case v < 0:
		*clamped = append(*clamped, name)
		return 0
	case v > 1:
		*clamped = append(*clamped, name)
		return 1
	default:
		return v
	}
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func floatOr(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func strOr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// DecodeAction decodes the flat wire form into a typed Action, applying the
// documented defaults for omitted optional fields and clamping coordinates
// into [0, 1]. An unknown kind is an error; converting that into a terminal
// fail action is the parser's job, not the codec's.
func DecodeAction(data []byte) (Action, error) {
	var w wireAction
	if err := json.Unmarshal(data, &w); err != nil {
		return Action{}, fmt.Errorf("malformed action JSON: %w", err)
	}

	a := Action{Kind: ActionKind(w.Action), Reasoning: w.Reasoning}

	switch a.Kind {
	case KindTap:
		a.Tap = &TapParams{
			X:           clamp01(floatOr(w.X), "x", &a.Clamped),
			Y:           clamp01(floatOr(w.Y), "y", &a.Clamped),
			DurationMs:  intOr(w.DurationMs, 0),
			PostDelayMs: intOr(w.PostDelayMs, DefaultTapPostDelayMs),
		}
	case KindDoubleTap:
		a.DoubleTap = &DoubleTapParams{
			X:           clamp01(floatOr(w.X), "x", &a.Clamped),
			Y:           clamp01(floatOr(w.Y), "y", &a.Clamped),
			DelayMs:     intOr(w.DelayMs, DefaultDoubleTapDelayMs),
			PostDelayMs: intOr(w.PostDelayMs, DefaultDoubleTapPostDelayMs),
		}
	case KindSwipe:
		a.Swipe = &SwipeParams{
			X1:         clamp01(floatOr(w.X1), "x1", &a.Clamped),
			Y1:         clamp01(floatOr(w.Y1), "y1", &a.Clamped),
			X2:         clamp01(floatOr(w.X2), "x2", &a.Clamped),
			Y2:         clamp01(floatOr(w.Y2), "y2", &a.Clamped),
			DurationMs: intOr(w.DurationMs, DefaultSwipeDurationMs),
		}
	case KindTypeText:
		a.Type = &TypeParams{Text: strOr(w.Text)}
	case KindWait:
		a.Wait = &WaitParams{DurationMs: intOr(w.DurationMs, DefaultWaitDurationMs)}
	case KindDone:
		a.Done = &DoneParams{Result: strOr(w.Result)}
	case KindFail:
		a.Fail = &FailParams{Reason: strOr(w.Reason)}
	case KindBack, KindHome, KindEnter:
		// No parameters.
	default:
		return Action{}, fmt.Errorf("unknown action kind %q", w.Action)
	}

	return a, nil
}

// MarshalJSON emits the flat wire form so that DecodeAction round-trips every
// kind.
func (a Action) MarshalJSON() ([]byte, error) {
	m := map[string]any{"action": string(a.Kind)}
	if a.Reasoning != "" {
		m["reasoning"] = a.Reasoning
	}

	switch a.Kind {
	case KindTap:
		if a.Tap == nil {
			return nil, fmt.Errorf("tap action missing parameters")
		}
		m["x"], m["y"] = a.Tap.X, a.Tap.Y
		if a.Tap.DurationMs != 0 {
			m["duration_ms"] = a.Tap.DurationMs
		}
		m["post_delay_ms"] = a.Tap.PostDelayMs
	case KindDoubleTap:
		if a.DoubleTap == nil {
			return nil, fmt.Errorf("double_tap action missing parameters")
		}
		m["x"], m["y"] = a.DoubleTap.X, a.DoubleTap.Y
		m["delay_ms"] = a.DoubleTap.DelayMs
		m["post_delay_ms"] = a.DoubleTap.PostDelayMs
	case KindSwipe:
		if a.Swipe == nil {
			return nil, fmt.Errorf("swipe action missing parameters")
		}
		m["x1"], m["y1"] = a.Swipe.X1, a.Swipe.Y1
		m["x2"], m["y2"] = a.Swipe.X2, a.Swipe.Y2
		m["duration_ms"] = a.Swipe.DurationMs
	case KindTypeText:
		if a.Type == nil {
			return nil, fmt.Errorf("type action missing parameters")
		}
		m["text"] = a.Type.Text
	case KindWait:
		if a.Wait == nil {
			return nil, fmt.Errorf("wait action missing parameters")
		}
		m["duration_ms"] = a.Wait.DurationMs
	case KindDone:
		if a.Done == nil {
			return nil, fmt.Errorf("done action missing parameters")
		}
		m["result"] = a.Done.Result
	case KindFail:
		if a.Fail == nil {
			return nil, fmt.Errorf("fail action missing parameters")
		}
		m["reason"] = a.Fail.Reason
	case KindBack, KindHome, KindEnter:
	default:
		return nil, fmt.Errorf("unknown action kind %q", a.Kind)
	}

	return json.Marshal(m)
}

// UnmarshalJSON delegates to DecodeAction so the codec round-trips.
func (a *Action) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeAction(data)
	if err != nil {
		return err
	}
	*a = decoded
	return nil
}

// Terminal reports whether the action ends the task.
func (a Action) Terminal() bool {
	return a.Kind == KindDone || a.Kind == KindFail
}

// String renders a short human-readable description, mainly for logs.
func (a Action) String() string {
	switch a.Kind {
	case KindTap:
		if a.Tap != nil {
			return fmt.Sprintf("tap(%.3f, %.3f)", a.Tap.X, a.Tap.Y)
		}
	case KindDoubleTap:
		if a.DoubleTap != nil {
			return fmt.Sprintf("double_tap(%.3f, %.3f)", a.DoubleTap.X, a.DoubleTap.Y)
		}
	case KindSwipe:
		if a.Swipe != nil {
			return fmt.Sprintf("swipe(%.3f, %.3f -> %.3f, %.3f)", a.Swipe.X1, a.Swipe.Y1, a.Swipe.X2, a.Swipe.Y2)
		}
	case KindTypeText:
		if a.Type != nil {
			return fmt.Sprintf("type(%d chars)", len(a.Type.Text))
		}
	}
	return string(a.Kind)
}
