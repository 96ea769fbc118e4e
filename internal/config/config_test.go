package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// Verifies defaults apply when no config file is present.
func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "127.0.0.1:5037", cfg.Device.ServerAddr)
	assert.Equal(t, 50, cfg.Agent.MaxSteps)
	assert.Equal(t, time.Second, cfg.Agent.StepDelay)
	assert.Equal(t, 3, cfg.Agent.StuckThreshold)
	assert.Equal(t, 2, cfg.Agent.MaxRecoveryAttempts)
	assert.Equal(t, "automation", cfg.LLM.Purpose)
	assert.Equal(t, 5*time.Minute, cfg.LLM.CacheTTL)
}

func TestLoadOverridesAndSeeds(t *testing.T) {
	path := writeConfig(t, `
agent:
  max_steps: 12
  step_delay: 250ms
device:
  serial: "10.0.3.2:5555"
integrations:
  - name: primary
    purpose: automation
    provider: anthropic
    model: claude-sonnet-4-5
    api_key: sk-test
    priority: 10
    default: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Agent.MaxSteps)
	assert.Equal(t, 250*time.Millisecond, cfg.Agent.StepDelay)
	assert.Equal(t, "10.0.3.2:5555", cfg.Device.Serial)

	require.Len(t, cfg.Integrations, 1)
	seed := cfg.Integrations[0]
	assert.Equal(t, "anthropic", seed.Provider)
	assert.Equal(t, 10, seed.Priority)
	assert.True(t, seed.Default)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"zero max steps", "agent:\n  max_steps: 0\n"},
		{"stuck threshold too small", "agent:\n  stuck_threshold: 1\n"},
		{"seed missing model", "integrations:\n  - provider: openai\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			assert.Error(t, err)
		})
	}
}
