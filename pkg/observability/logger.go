package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/sleads/portal/pkg/contextkeys"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "INFO"
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger writes structured JSON log lines through stdlib slog. Chained
// With* calls return derived loggers; the portal convention is one
// WithComponent per subsystem (api, task_worker, send_pipeline) plus
// request_id / user_id fields pulled from the request context.
type Logger struct {
	logger *slog.Logger
	level  LogLevel
}

// NewLogger creates a logger writing JSON lines at the given level
func NewLogger(level LogLevel, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}
	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{
		Level: level.slogLevel(),
	})
	return &Logger{logger: slog.New(handler), level: level}
}

func (l *Logger) derive(args ...interface{}) *Logger {
	return &Logger{logger: l.logger.With(args...), level: l.level}
}

// WithField returns a logger carrying an extra field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.derive(key, value)
}

// WithFields returns a logger carrying extra fields, attached in key order
// so log lines are stable
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]interface{}, 0, len(fields)*2)
	for _, k := range keys {
		args = append(args, k, fields[k])
	}
	return l.derive(args...)
}

// WithComponent names the portal subsystem emitting the log line
func (l *Logger) WithComponent(name string) *Logger {
	return l.derive("component", name)
}

// WithError attaches an error field; a nil error is a no-op
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.derive("error", err.Error())
}

// WithContext attaches the request id and user id carried in the request
// context, when present
func (l *Logger) WithContext(ctx context.Context) *Logger {
	out := l
	if requestID, ok := ctx.Value(contextkeys.RequestIDKey).(string); ok && requestID != "" {
		out = out.derive("request_id", requestID)
	}
	if userID, ok := ctx.Value(contextkeys.UserIDKey).(string); ok && userID != "" {
		out = out.derive("user_id", userID)
	}
	return out
}

func (l *Logger) Debug(message string) { l.logger.Debug(message) }
func (l *Logger) Info(message string)  { l.logger.Info(message) }
func (l *Logger) Warn(message string)  { l.logger.Warn(message) }
func (l *Logger) Error(message string) { l.logger.Error(message) }

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}
