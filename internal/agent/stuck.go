// File: internal/agent/stuck.go
package agent

import "go.uber.org/zap"

// StuckDetector watches the stream of screenshot fingerprints for a screen
// that has stopped changing. It holds a ring of the most recent threshold
// fingerprints and a recovery budget shared with the planner.
//
// The budget only replenishes when the window stops being uniform, which
// deliberately makes repeated freezes within one task progressively harder to
// recover from.
type StuckDetector struct {
	threshold   int
	maxAttempts int
	window      []string
	attempts    int
	logger      *zap.Logger
}

// NewStuckDetector creates a detector with the given window size and recovery
// budget.
func NewStuckDetector(threshold, maxAttempts int, logger *zap.Logger) *StuckDetector {
	return &StuckDetector{
		threshold:   threshold,
		maxAttempts: maxAttempts,
		logger:      logger.Named("stuck_detector"),
	}
}

// Observe records a fingerprint and reports whether the loop should run a
// recovery step. A uniform window with an exhausted budget reports not-stuck;
// the loop checks Exhausted to fail fast instead of spinning.
func (d *StuckDetector) Observe(fingerprint string) bool {
	d.window = append(d.window, fingerprint)
	if len(d.window) > d.threshold {
		d.window = d.window[len(d.window)-d.threshold:]
	}

	if len(d.window) < d.threshold {
		return false
	}

	if !d.uniform() {
		d.attempts = 0
		return false
	}

	if d.attempts < d.maxAttempts {
		d.logger.Warn("stuck state detected",
			zap.Int("recovery_attempts", d.attempts),
			zap.Int("threshold", d.threshold),
		)
		return true
	}

	d.logger.Error("max recovery attempts reached", zap.Int("recovery_attempts", d.attempts))
	return false
}

// Exhausted reports whether the screen is frozen and the recovery budget is
// spent, i.e. the loop should terminate.
func (d *StuckDetector) Exhausted() bool {
	return len(d.window) == d.threshold && d.uniform() && d.attempts >= d.maxAttempts
}

// RecordAttempt consumes one unit of the recovery budget and returns the
// attempt number (1-based).
func (d *StuckDetector) RecordAttempt() int {
	d.attempts++
	return d.attempts
}

// Attempts returns the recovery attempts consumed since the screen last
// changed.
func (d *StuckDetector) Attempts() int {
	return d.attempts
}

func (d *StuckDetector) uniform() bool {
	for _, fp := range d.window[1:] {
		if fp != d.window[0] {
			return false
		}
	}
	return true
}
