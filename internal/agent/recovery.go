// File: internal/agent/recovery.go
package agent

import (
	"fmt"

	"github.com/SerupAI/mobiledroid/api/schemas"
)

// recoveryLongPressMs is the hold used when a stuck tap is retried as a long
// press.
const recoveryLongPressMs = 1000

// PlanRecovery picks the next escalation action for a stuck screen, given the
// most recent executed actions and the 1-based attempt number. It returns
// false when the ladder is exhausted and the loop should give up.
//
// The ladder reacts to what was last tried: a tap escalates to a long press
// on the same spot, then to back; a swipe goes straight to back; anything
// else backs out first and goes home second.
func PlanRecovery(lastActions []schemas.Action, attempt int) (schemas.Action, bool) {
	var last *schemas.Action
	if len(lastActions) > 0 {
		last = &lastActions[len(lastActions)-1]
	}

	if last != nil {
		switch last.Kind {
		case schemas.KindTap:
			if last.Tap != nil && attempt == 1 {
				return schemas.Action{
					Kind:      schemas.KindTap,
					Reasoning: recoveryReason(attempt, "long press instead of tap"),
					Tap: &schemas.TapParams{
						X:           last.Tap.X,
						Y:           last.Tap.Y,
						DurationMs:  recoveryLongPressMs,
						PostDelayMs: last.Tap.PostDelayMs,
					},
				}, true
			}
			if attempt == 2 {
				return schemas.KeyAction(schemas.KindBack, recoveryReason(attempt, "go back to reset state")), true
			}
		case schemas.KindSwipe:
			if attempt <= 2 {
				return schemas.KeyAction(schemas.KindBack, recoveryReason(attempt, "go back after stuck swipe")), true
			}
		}
	}

	switch attempt {
	case 1:
		return schemas.KeyAction(schemas.KindBack, recoveryReason(attempt, "navigate back to unstick")), true
	case 2:
		return schemas.KeyAction(schemas.KindHome, recoveryReason(attempt, "go to home screen to reset")), true
	}
	return schemas.Action{}, false
}

func recoveryReason(attempt int, strategy string) string {
	return fmt.Sprintf("Recovery attempt %d: %s", attempt, strategy)
}
