// Package logger provides the structured logger used across the engine
// packages, backed by charmbracelet/log.
package logger

import (
	"context"
	"io"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// LogLevel is a human-readable logging threshold, decoupled from charmlog's
// own level type so callers never need to import it directly.
type LogLevel string

const (
	DebugLevel    LogLevel = "debug"
	InfoLevel     LogLevel = "info"
	WarnLevel     LogLevel = "warn"
	ErrorLevel    LogLevel = "error"
	DisabledLevel LogLevel = "disabled"
)

// ToCharmlogLevel converts to charmlog's level type, defaulting unknown
// values to InfoLevel.
func (l LogLevel) ToCharmlogLevel() charmlog.Level {
	switch l {
	case DebugLevel:
		return charmlog.DebugLevel
	case WarnLevel:
		return charmlog.WarnLevel
	case ErrorLevel:
		return charmlog.ErrorLevel
	case DisabledLevel:
		return charmlog.Level(1000)
	default:
		return charmlog.InfoLevel
	}
}

// Config configures a Logger.
type Config struct {
	Level      LogLevel
	Output     io.Writer
	JSON       bool
	AddSource  bool
	TimeFormat string
}

// DefaultConfig is the production default: info level, stdout, text format.
func DefaultConfig() *Config {
	return &Config{
		Level:      InfoLevel,
		Output:     os.Stdout,
		JSON:       false,
		AddSource:  false,
		TimeFormat: "15:04:05",
	}
}

// TestConfig is the default used when no config is supplied under `go test`:
// logging disabled entirely, output discarded.
func TestConfig() *Config {
	return &Config{
		Level:      DisabledLevel,
		Output:     io.Discard,
		JSON:       false,
		AddSource:  false,
		TimeFormat: "15:04:05",
	}
}

// IsTestEnvironment reports whether the process is running under `go test`.
func IsTestEnvironment() bool {
	if flag := os.Getenv("GO_TEST"); flag != "" {
		return true
	}
	for _, arg := range os.Args {
		if strings.HasSuffix(arg, ".test") || strings.Contains(arg, "/_test/") {
			return true
		}
	}
	return strings.HasSuffix(os.Args[0], ".test")
}

// Logger is the structured logging surface the engine packages depend on.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
	With(keyvals ...any) Logger
}

type charmLogger struct {
	l *charmlog.Logger
}

// NewLogger builds a Logger from config, falling back to TestConfig() under
// `go test` and DefaultConfig() otherwise when config is nil.
func NewLogger(config *Config) Logger {
	if config == nil {
		if IsTestEnvironment() {
			config = TestConfig()
		} else {
			config = DefaultConfig()
		}
	}
	l := charmlog.NewWithOptions(config.Output, charmlog.Options{
		Level:           config.Level.ToCharmlogLevel(),
		ReportTimestamp: true,
		TimeFormat:      config.TimeFormat,
		ReportCaller:    config.AddSource,
		Formatter:       formatterFor(config.JSON),
	})
	return &charmLogger{l: l}
}

func formatterFor(asJSON bool) charmlog.Formatter {
	if asJSON {
		return charmlog.JSONFormatter
	}
	return charmlog.TextFormatter
}

func (c *charmLogger) Debug(msg string, keyvals ...any) { c.l.Debug(msg, keyvals...) }
func (c *charmLogger) Info(msg string, keyvals ...any)  { c.l.Info(msg, keyvals...) }
func (c *charmLogger) Warn(msg string, keyvals ...any)  { c.l.Warn(msg, keyvals...) }
func (c *charmLogger) Error(msg string, keyvals ...any) { c.l.Error(msg, keyvals...) }

func (c *charmLogger) With(keyvals ...any) Logger {
	return &charmLogger{l: c.l.With(keyvals...)}
}

// loggerCtxKeyType is an unexported type so LoggerCtxKey can't collide with
// context keys from other packages.
type loggerCtxKeyType struct{}

// LoggerCtxKey is the context key a Logger is stored under.
var LoggerCtxKey = loggerCtxKeyType{}

// ContextWithLogger returns a child context carrying l.
func ContextWithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, LoggerCtxKey, l)
}

// defaultLogger is built at package initialization and returned by
// FromContext's fallback path.
var defaultLogger = NewLogger(nil)

// FromContext returns the Logger stored in ctx, or a default logger if ctx
// carries none (or a value of the wrong type).
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(LoggerCtxKey).(Logger); ok && l != nil {
		return l
	}
	return defaultLogger
}
