package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sleads/portal/pkg/contextkeys"
)

func logLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	return line
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WarnLevel, &buf)

	logger.Debug("debug line")
	logger.Info("info line")
	assert.Empty(t, buf.String(), "below-threshold lines must be dropped")

	logger.Warn("warn line")
	line := logLine(t, &buf)
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "warn line", line["msg"])
}

func TestLoggerFields(t *testing.T) {
	t.Run("WithField", func(t *testing.T) {
		var buf bytes.Buffer
		NewLogger(InfoLevel, &buf).WithField("org_id", 42).Info("created")

		line := logLine(t, &buf)
		assert.Equal(t, float64(42), line["org_id"])
	})

	t.Run("WithFields is deterministic", func(t *testing.T) {
		fields := map[string]interface{}{"b": 2, "a": 1, "c": 3}

		var first bytes.Buffer
		NewLogger(InfoLevel, &first).WithFields(fields).Info("x")
		var second bytes.Buffer
		NewLogger(InfoLevel, &second).WithFields(fields).Info("x")

		stripTime := func(s string) string {
			return s[strings.Index(s, `"msg"`):]
		}
		assert.Equal(t, stripTime(first.String()), stripTime(second.String()))
	})

	t.Run("WithComponent", func(t *testing.T) {
		var buf bytes.Buffer
		NewLogger(InfoLevel, &buf).WithComponent("send_pipeline").Info("sent")

		line := logLine(t, &buf)
		assert.Equal(t, "send_pipeline", line["component"])
	})

	t.Run("WithError", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(InfoLevel, &buf)

		assert.Same(t, logger, logger.WithError(nil))

		logger.WithError(errors.New("boom")).Error("failed")
		line := logLine(t, &buf)
		assert.Equal(t, "boom", line["error"])
	})
}

func TestLoggerWithContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	ctx := contextkeys.WithRequestID(context.Background(), "req-123")
	ctx = contextkeys.WithUserID(ctx, "7")

	logger.WithContext(ctx).Info("handled")
	line := logLine(t, &buf)
	assert.Equal(t, "req-123", line["request_id"])
	assert.Equal(t, "7", line["user_id"])

	buf.Reset()
	logger.WithContext(context.Background()).Info("bare")
	line = logLine(t, &buf)
	assert.NotContains(t, line, "request_id")
	assert.NotContains(t, line, "user_id")
}

func TestLoggerFormatted(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(DebugLevel, &buf).Infof("quote %s sent", "Q-2026-000042")

	line := logLine(t, &buf)
	assert.Equal(t, "quote Q-2026-000042 sent", line["msg"])
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", DebugLevel.String())
	assert.Equal(t, "INFO", InfoLevel.String())
	assert.Equal(t, "WARN", WarnLevel.String())
	assert.Equal(t, "ERROR", ErrorLevel.String())
}
