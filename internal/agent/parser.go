// File: internal/agent/parser.go
package agent

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/SerupAI/mobiledroid/api/schemas"
)

// Regex uses \x60 for backticks because Go raw strings cannot contain them.
var fencedJSONRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*({.*})\\s*\x60\x60\x60")

// ParseAction turns a model response into an Action. It never fails: models
// wrap JSON in markdown fences or conversational text often enough that the
// parser peels those off, and anything still unparseable becomes a synthetic
// fail action carrying the diagnostic. The loop must not crash on a bad
// response.
func ParseAction(raw string) schemas.Action {
	text := strings.TrimSpace(raw)
	if text == "" {
		return schemas.FailAction("model returned an empty response")
	}

	var candidate string
	if matches := fencedJSONRegex.FindStringSubmatch(text); len(matches) > 1 {
		candidate = matches[1]
	} else {
		// Slice between the outermost braces so prose on either side of the
		// object is discarded.
		first := strings.Index(text, "{")
		last := strings.LastIndex(text, "}")
		if first == -1 || last <= first {
			return schemas.FailAction(fmt.Sprintf("no JSON object in model response: %s", truncate(text, 200)))
		}
		candidate = text[first : last+1]
	}

	action, err := schemas.DecodeAction([]byte(candidate))
	if err != nil {
		return schemas.FailAction(fmt.Sprintf("failed to parse action: %v (raw: %s)", err, truncate(candidate, 200)))
	}
	return action
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
