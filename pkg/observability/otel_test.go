package observability

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitOTelDisabled(t *testing.T) {
	logger := NewLogger(ErrorLevel, io.Discard)

	providers, err := InitOTel(context.Background(), OTelConfig{Enabled: false}, logger)
	require.NoError(t, err)
	assert.Nil(t, providers, "disabled telemetry must not install providers")
}

func TestShutdownOTel(t *testing.T) {
	logger := NewLogger(ErrorLevel, io.Discard)

	t.Run("nil providers is a no-op", func(t *testing.T) {
		assert.NoError(t, ShutdownOTel(context.Background(), nil, logger))
	})

	t.Run("flushes an installed tracer provider", func(t *testing.T) {
		providers := &OTelProviders{TracerProvider: sdktrace.NewTracerProvider()}
		assert.NoError(t, ShutdownOTel(context.Background(), providers, logger))
	})
}
