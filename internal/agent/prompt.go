// File: internal/agent/prompt.go
package agent

import (
	"fmt"
	"strings"

	"github.com/SerupAI/mobiledroid/api/schemas"
	"github.com/SerupAI/mobiledroid/internal/device"
)

// systemPrompt tells the model what it is driving and the exact wire format
// expected back. Coordinates are normalized so the same decision works across
// screen resolutions.
const systemPrompt = `You are an AI agent controlling an Android mobile device. You can see the device screen through screenshots and understand the UI structure through a hierarchy dump.

Your job is to complete tasks by interacting with the device through a sequence of actions: analyze the current screen, decide on the next action, observe the result, repeat until the task is complete.

## Available Actions

All coordinates are normalized: 0.0 is the left/top edge, 1.0 is the right/bottom edge.

### tap(x, y, duration_ms=None, post_delay_ms=300)
Tap at normalized screen coordinates. Set duration_ms (e.g. 1000) for a long press.

### double_tap(x, y, delay_ms=300, post_delay_ms=800)
Double tap, useful for opening apps or selecting text.

### swipe(x1, y1, x2, y2, duration_ms=300)
Swipe from one point to another. Scroll down: swipe(0.5, 0.7, 0.5, 0.2). Scroll up: swipe(0.5, 0.2, 0.5, 0.7).

### type(text)
Input text. The device must already be focused on a text field.

### back() / home() / enter()
Press the Android back button, home button, or enter key.

### wait(duration_ms=1000)
Do nothing while the UI settles or content loads.

### done(result)
Mark the task as complete and return a result summary.

### fail(reason)
Mark the task as failed with a reason.

## Guidelines

1. Prefer the coordinates from the UI element list over visual estimation.
2. If an action does not produce the expected result after 2-3 tries, take a different approach: other coordinates, double_tap or long press instead of tap, or back out and retry.
3. Be efficient: complete tasks with minimal actions.
4. After actions that trigger navigation or loading, expect a new screenshot.

## Response Format

Respond with a single JSON object:

` + "```json" + `
{
  "action": "tap",
  "x": 0.5,
  "y": 0.42,
  "reasoning": "Tapping the 'Login' button to proceed"
}
` + "```"

// taskPrompt renders the task header, with the expected output format when
// the caller wants results in a particular shape.
func taskPrompt(task, outputFormat string) string {
	prompt := "Task: " + task
	if outputFormat != "" {
		prompt += "\n\nExpected output format: " + outputFormat
	}
	return prompt
}

// buildStepMessage assembles the user turn for one step: task, step number,
// screen size, the rendered UI tree, the screenshot and the closing
// instruction. When a recovery attempt preceded this step the model is told,
// so it tries something other than the action that froze the screen.
func buildStepMessage(task string, stepNumber int, snapshot *schemas.DeviceSnapshot, recoveryAttempts int) schemas.Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Step %d\n\n%s\n\n", stepNumber, task)
	fmt.Fprintf(&sb, "Screen size: %dx%d\n\n", snapshot.Width, snapshot.Height)
	sb.WriteString(device.FormatElements(snapshot))

	if recoveryAttempts > 0 {
		fmt.Fprintf(&sb, "\n\nIMPORTANT: This is recovery attempt #%d. Previous attempts may have failed. Consider alternative approaches or different coordinates.", recoveryAttempts)
	}
	sb.WriteString("\n\nCurrent screen:")

	return schemas.Message{
		Role: "user",
		Content: []schemas.ContentPart{
			{Text: sb.String()},
			{PNG: snapshot.PNG},
			{Text: "\nWhat action should I take next? Respond with a JSON object."},
		},
	}
}
