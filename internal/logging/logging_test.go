package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/stylewatch/internal/config"
)

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer

	logger := New(&config.Config{LogLevel: "debug", LogFormat: "text"}, &buf)
	require.NotNil(t, logger)

	logger.Info("processing", slog.String("input", "a.css"))
	assert.Contains(t, buf.String(), "msg=processing")
	assert.Contains(t, buf.String(), "input=a.css")
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer

	logger := New(&config.Config{LogLevel: "info", LogFormat: "json"}, &buf)
	logger.Info("removed output")
	assert.Contains(t, buf.String(), `"msg":"removed output"`)
}

func TestSetupWithWriter_SetsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer

	logger := SetupWithWriter(&config.Config{LogLevel: "info", LogFormat: "text"}, &buf)
	assert.Equal(t, logger.Handler(), slog.Default().Handler())
}

func TestNew_QuietSuppressesInfo(t *testing.T) {
	var buf bytes.Buffer

	logger := New(&config.Config{LogLevel: "info", LogFormat: "text", Quiet: true}, &buf)
	logger.Info("should-not-appear")
	logger.Error("should-appear")

	assert.NotContains(t, buf.String(), "should-not-appear")
	assert.Contains(t, buf.String(), "should-appear")
}

func TestNew_InfoLevelHidesDebug(t *testing.T) {
	var buf bytes.Buffer

	logger := New(&config.Config{LogLevel: "info", LogFormat: "text"}, &buf)
	logger.Debug("processor exited")

	assert.Empty(t, buf.String())
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer

	logger := Component(New(&config.Config{LogLevel: "info", LogFormat: "text"}, &buf), "dispatch")
	logger.Info("hello")

	assert.Contains(t, buf.String(), "component=dispatch")
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() { Discard().Error("dropped") })
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestContext_RoundTrip(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	got := FromContext(NewContext(context.Background(), logger))
	assert.Equal(t, logger, got)
}

func TestFromContext_FallbackToDefault(t *testing.T) {
	assert.Equal(t, slog.Default(), FromContext(context.Background()))
}
