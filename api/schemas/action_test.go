package schemas

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Verifies that every action kind survives an encode/decode round trip.
func TestActionRoundTrip(t *testing.T) {
	actions := []Action{
		{Kind: KindTap, Reasoning: "press login", Tap: &TapParams{X: 0.5, Y: 0.4, PostDelayMs: 300}},
		{Kind: KindTap, Tap: &TapParams{X: 0.1, Y: 0.9, DurationMs: 1000, PostDelayMs: 300}},
		{Kind: KindDoubleTap, DoubleTap: &DoubleTapParams{X: 0.25, Y: 0.75, DelayMs: 300, PostDelayMs: 800}},
		{Kind: KindSwipe, Swipe: &SwipeParams{X1: 0.5, Y1: 0.8, X2: 0.5, Y2: 0.2, DurationMs: 300}},
		{Kind: KindTypeText, Type: &TypeParams{Text: "hello@example.com"}},
		{Kind: KindBack, Reasoning: "leave dialog"},
		{Kind: KindHome},
		{Kind: KindEnter},
		{Kind: KindWait, Wait: &WaitParams{DurationMs: 1000}},
		{Kind: KindDone, Done: &DoneParams{Result: "finished"}},
		{Kind: KindFail, Fail: &FailParams{Reason: "element not found"}},
	}

	for _, want := range actions {
		t.Run(string(want.Kind), func(t *testing.T) {
			data, err := json.Marshal(want)
			require.NoError(t, err)

			got, err := DecodeAction(data)
			require.NoError(t, err)

			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// Verifies that omitted optional fields take their documented defaults.
func TestDecodeActionDefaults(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		check func(t *testing.T, a Action)
	}{
		{
			name: "tap post delay",
			raw:  `{"action":"tap","x":0.5,"y":0.5}`,
			check: func(t *testing.T, a Action) {
				require.NotNil(t, a.Tap)
				assert.Equal(t, 0, a.Tap.DurationMs, "absent duration means a regular tap")
				assert.Equal(t, DefaultTapPostDelayMs, a.Tap.PostDelayMs)
			},
		},
		{
			name: "double tap delays",
			raw:  `{"action":"double_tap","x":0.5,"y":0.5}`,
			check: func(t *testing.T, a Action) {
				require.NotNil(t, a.DoubleTap)
				assert.Equal(t, DefaultDoubleTapDelayMs, a.DoubleTap.DelayMs)
				assert.Equal(t, DefaultDoubleTapPostDelayMs, a.DoubleTap.PostDelayMs)
			},
		},
		{
			name: "swipe duration",
			raw:  `{"action":"swipe","x1":0.5,"y1":0.8,"x2":0.5,"y2":0.2}`,
			check: func(t *testing.T, a Action) {
				require.NotNil(t, a.Swipe)
				assert.Equal(t, DefaultSwipeDurationMs, a.Swipe.DurationMs)
			},
		},
		{
			name: "wait duration",
			raw:  `{"action":"wait"}`,
			check: func(t *testing.T, a Action) {
				require.NotNil(t, a.Wait)
				assert.Equal(t, DefaultWaitDurationMs, a.Wait.DurationMs)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := DecodeAction([]byte(tt.raw))
			require.NoError(t, err)
			tt.check(t, a)
		})
	}
}

// Verifies coordinates are clamped into [0, 1] and the clamp is observable.
func TestDecodeActionClampsCoordinates(t *testing.T) {
	a, err := DecodeAction([]byte(`{"action":"tap","x":1.7,"y":-0.2}`))
	require.NoError(t, err)
	require.NotNil(t, a.Tap)

	assert.Equal(t, 1.0, a.Tap.X)
	assert.Equal(t, 0.0, a.Tap.Y)
	assert.ElementsMatch(t, []string{"x", "y"}, a.Clamped)

	a, err = DecodeAction([]byte(`{"action":"swipe","x1":-3,"y1":0.5,"x2":0.5,"y2":9}`))
	require.NoError(t, err)
	require.NotNil(t, a.Swipe)

	assert.Equal(t, 0.0, a.Swipe.X1)
	assert.Equal(t, 1.0, a.Swipe.Y2)
	assert.ElementsMatch(t, []string{"x1", "y2"}, a.Clamped)
}

func TestDecodeActionUnknownKind(t *testing.T) {
	_, err := DecodeAction([]byte(`{"action":"teleport","x":0.5}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown action kind")
}

func TestDecodeActionMalformedJSON(t *testing.T) {
	_, err := DecodeAction([]byte(`{"action":"tap",`))
	require.Error(t, err)
}

func TestActionTerminal(t *testing.T) {
	assert.True(t, DoneAction("ok", "").Terminal())
	assert.True(t, FailAction("bad").Terminal())
	assert.False(t, KeyAction(KindBack, "").Terminal())
}
