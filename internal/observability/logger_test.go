package observability

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/SerupAI/mobiledroid/internal/config"
)

// memorySyncer collects log output for assertions.
type memorySyncer struct {
	strings.Builder
}

func (m *memorySyncer) Sync() error { return nil }

func TestInitializeWritesJSON(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	out := &memorySyncer{}
	Initialize(config.LoggerConfig{Level: "debug", Format: "json", ServiceName: "mobiledroid"}, zapcore.Lock(zapcore.AddSync(out)))

	logger := GetLogger()
	require.NotNil(t, logger)
	logger.Info("step executed", zap.Int("step", 3))
	require.NoError(t, logger.Sync())

	assert.Contains(t, out.String(), `"msg":"step executed"`)
	assert.Contains(t, out.String(), `"step":3`)
}

func TestInitializeOnlyOnce(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	first := &memorySyncer{}
	second := &memorySyncer{}
	Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "a"}, zapcore.Lock(zapcore.AddSync(first)))
	Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "b"}, zapcore.Lock(zapcore.AddSync(second)))

	GetLogger().Info("only the first writer sees this")
	_ = GetLogger().Sync()

	assert.NotEmpty(t, first.String())
	assert.Empty(t, second.String())
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	out := &memorySyncer{}
	Initialize(config.LoggerConfig{Level: "chatty", Format: "json", ServiceName: "mobiledroid"}, zapcore.Lock(zapcore.AddSync(out)))

	GetLogger().Debug("suppressed at info level")
	_ = GetLogger().Sync()
	assert.Empty(t, out.String())
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	assert.NotNil(t, GetLogger())
}
