// File: api/schemas/snapshot.go
package schemas

import "time"

// Bounds is an element's absolute pixel rectangle on the screen.
type Bounds struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// CenterX returns the horizontal pixel midpoint of the bounds.
func (b Bounds) CenterX() int { return (b.Left + b.Right) / 2 }

// CenterY returns the vertical pixel midpoint of the bounds.
func (b Bounds) CenterY() int { return (b.Top + b.Bottom) / 2 }

// UIElement is one node of the device's accessibility tree, reduced to the
// attributes the decision model needs to locate and describe it.
type UIElement struct {
	Text       string `json:"text,omitempty"`
	Desc       string `json:"desc,omitempty"`
	ResourceID string `json:"resource_id,omitempty"`
	ClassName  string `json:"class_name,omitempty"`
	Bounds     Bounds `json:"bounds"`
	Clickable  bool   `json:"clickable,omitempty"`
	Enabled    bool   `json:"enabled"`
	Focused    bool   `json:"focused,omitempty"`
}

// DeviceSnapshot is one observation of the device: the raw screenshot, the
// parsed accessibility tree and the screen dimensions. Snapshots are produced
// fresh every step and discarded once the step message and fingerprint have
// been derived from them.
type DeviceSnapshot struct {
	PNG      []byte      `json:"-"`
	Elements []UIElement `json:"elements"`
	Width    int         `json:"width"`
	Height   int         `json:"height"`
}

// StepRecord captures one executed step of a task: the action taken and the
// raw executor result. The list of records is append-only and owned by the
// single task execution that produced it.
type StepRecord struct {
	ID         string         `json:"id"`
	StepNumber int            `json:"step_number"`
	Action     Action         `json:"action"`
	Result     map[string]any `json:"result"`
	Recovery   bool           `json:"recovery,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// ExecutionState is the task loop's terminal (or in-flight) state.
type ExecutionState string

const (
	StateRunning    ExecutionState = "running"
	StateRecovering ExecutionState = "recovering"
	StateDone       ExecutionState = "done"
	StateFailed     ExecutionState = "failed"
	StateTimedOut   ExecutionState = "timed_out"
	StateCancelled  ExecutionState = "cancelled"
)

// TaskResult is the single terminal value of a task execution. Every
// termination path produces one, with a human-readable error when the task
// did not succeed and the full step trail either way.
type TaskResult struct {
	State       ExecutionState `json:"state"`
	Success     bool           `json:"success"`
	Result      string         `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	Steps       []StepRecord   `json:"steps"`
	TotalTokens int            `json:"total_tokens"`
}
