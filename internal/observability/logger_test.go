package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	"github.com/droverhq/drover-cli/internal/config"
)

func TestInitializeOnce(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	sink := &zaptest.Buffer{}
	Initialize(config.LoggerConfig{Level: "debug", Format: "json"}, zapcore.AddSync(sink))
	first := GetLogger()
	require.NotNil(t, first)

	// A second call must not replace the logger.
	Initialize(config.LoggerConfig{Level: "error", Format: "console"}, zapcore.AddSync(&zaptest.Buffer{}))
	assert.Same(t, first, GetLogger())

	first.Info("hello", zap.String("k", "v"))
	assert.Contains(t, sink.String(), `"msg":"hello"`)
	assert.Contains(t, sink.String(), `"k":"v"`)
}

func TestGetLoggerFallback(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logger := GetLogger()
	require.NotNil(t, logger)
	assert.NotPanics(t, func() { logger.Debug("fallback logger works") })
}

func TestInvalidLevelDefaultsToInfo(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	sink := &zaptest.Buffer{}
	Initialize(config.LoggerConfig{Level: "chatty", Format: "json"}, zapcore.AddSync(sink))
	logger := GetLogger()

	logger.Debug("suppressed")
	logger.Info("visible")
	assert.NotContains(t, sink.String(), "suppressed")
	assert.Contains(t, sink.String(), "visible")
}
