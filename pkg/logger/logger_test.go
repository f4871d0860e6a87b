package logger

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	t.Run("Should provide correct default configuration", func(t *testing.T) {
		config := DefaultConfig()
		assert.Equal(t, InfoLevel, config.Level)
		assert.Equal(t, os.Stdout, config.Output)
		assert.False(t, config.JSON)
		assert.False(t, config.AddSource)
		assert.Equal(t, "15:04:05", config.TimeFormat)
	})

	t.Run("Should provide correct test configuration", func(t *testing.T) {
		config := TestConfig()
		assert.Equal(t, DisabledLevel, config.Level)
		assert.Equal(t, io.Discard, config.Output)
		assert.False(t, config.JSON)
		assert.False(t, config.AddSource)
		assert.Equal(t, "15:04:05", config.TimeFormat)
	})
}

// ToCharmlogLevel is the one place LogLevel touches charmbracelet/log's
// numeric scale directly; pin every mapping, including the unknown fallback.
func TestLogLevel_ToCharmlogLevel(t *testing.T) {
	levels := map[LogLevel]int{
		DebugLevel:      -4,
		InfoLevel:       0,
		WarnLevel:       4,
		ErrorLevel:      8,
		DisabledLevel:   1000,
		LogLevel("huh"): 0,
	}
	for level, want := range levels {
		t.Run(string(level), func(t *testing.T) {
			assert.Equal(t, want, int(level.ToCharmlogLevel()))
		})
	}
}

func TestNewLogger(t *testing.T) {
	t.Run("Should fall back to a built-in config when nil config provided under go test", func(t *testing.T) {
		logger := NewLogger(nil)
		require.NotNil(t, logger)
		logger.Info("test default config")
	})

	t.Run("Should write plain text by default", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&Config{Level: InfoLevel, Output: &buf, TimeFormat: "15:04:05"})
		logger.Info("test message")
		assert.Contains(t, buf.String(), "test message")
	})

	t.Run("Should switch to JSON formatting when enabled", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&Config{Level: InfoLevel, Output: &buf, JSON: true, TimeFormat: "15:04:05"})
		logger.Info("test message")
		output := buf.String()
		assert.Contains(t, output, "test message")
		assert.True(t, strings.HasPrefix(strings.TrimSpace(output), "{"))
	})
}

func TestLoggerLevels(t *testing.T) {
	t.Run("Should respect log level filtering", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&Config{Level: WarnLevel, Output: &buf, TimeFormat: "15:04:05"})

		logger.Debug("debug message")
		logger.Info("info message")
		logger.Warn("warn message")
		logger.Error("error message")

		output := buf.String()
		assert.NotContains(t, output, "debug message")
		assert.NotContains(t, output, "info message")
		assert.Contains(t, output, "warn message")
		assert.Contains(t, output, "error message")
	})

	t.Run("Should disable all logging when DisabledLevel is used", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&Config{Level: DisabledLevel, Output: &buf, TimeFormat: "15:04:05"})

		logger.Debug("debug message")
		logger.Info("info message")
		logger.Warn("warn message")
		logger.Error("error message")

		assert.Empty(t, buf.String())
	})
}

func TestLogger_With(t *testing.T) {
	t.Run("Should attach additional fields to every subsequent record", func(t *testing.T) {
		var buf bytes.Buffer
		base := NewLogger(&Config{Level: InfoLevel, Output: &buf, TimeFormat: "15:04:05"})

		base.With("component", "test", "operation", "validate").Info("operation completed")

		output := buf.String()
		for _, want := range []string{"component", "test", "operation", "validate", "operation completed"} {
			assert.Contains(t, output, want)
		}
	})

	t.Run("Should leave the base logger's own fields untouched", func(t *testing.T) {
		var buf bytes.Buffer
		base := NewLogger(&Config{Level: InfoLevel, Output: &buf, TimeFormat: "15:04:05"})
		_ = base.With("component", "child")

		base.Info("from base")
		assert.NotContains(t, buf.String(), "component")
	})
}

func TestFromContext(t *testing.T) {
	t.Run("Should return the logger stashed in context", func(t *testing.T) {
		want := NewLogger(TestConfig())
		ctx := ContextWithLogger(context.Background(), want)
		assert.Equal(t, want, FromContext(ctx))
	})

	cases := map[string]context.Context{
		"no logger in context": context.Background(),
		"wrong type stored":    context.WithValue(context.Background(), LoggerCtxKey, "not a logger"),
		"nil logger stored":    context.WithValue(context.Background(), LoggerCtxKey, (Logger)(nil)),
	}
	for name, ctx := range cases {
		t.Run("Should fall back to the default logger: "+name, func(t *testing.T) {
			got := FromContext(ctx)
			require.NotNil(t, got)
			got.Info("reached the fallback logger")
		})
	}
}

func TestIsTestEnvironment(t *testing.T) {
	t.Run("Should detect go test's own process as a test environment", func(t *testing.T) {
		assert.True(t, IsTestEnvironment())
	})
}
