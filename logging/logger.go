// Package logging provides a small abstraction over structured loggers so the
// orchestration core depends on a minimal interface (Logger) while callers
// plug in slog or zap. It also offers a richer StructuredLogger with
// contextual helpers (conversation, role, component) and domain helpers for
// model calls, image analyses and collaborations.
package logging

import (
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"
)

// LogLevel is a thin enum for user friendly level configuration decoupled from slog.
type LogLevel int

const (
	// LogLevelDebug is the debug logging level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the informational logging level.
	LogLevelInfo
	// LogLevelWarn is the warning logging level.
	LogLevelWarn
	// LogLevelError is the error logging level.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a textual level (debug, info, warn, error) into a
// LogLevel. Unknown values map to LogLevelInfo.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Logger defines the minimal logging interface used throughout ArchMesh.
// Arguments are alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// StructuredLogger wraps a Logger adding contextual cloning helpers and
// domain convenience methods. It is cheap to copy via With* methods.
type StructuredLogger struct {
	sink           Logger
	level          LogLevel
	context        map[string]any
	component      string
	conversationID string
	role           string
}

// LoggerConfig configures construction of a StructuredLogger.
type LoggerConfig struct {
	Level          LogLevel
	Format         string // json or text
	Output         io.Writer
	AddSource      bool
	Component      string
	ConversationID string
	CustomAttrs    map[string]any
}

// DefaultLoggerConfig returns a baseline JSON info level configuration.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{Level: LogLevelInfo, Format: "json", Output: os.Stdout, CustomAttrs: map[string]any{}}
}

// NewLogger builds a slog backed StructuredLogger from a config (or defaults if nil).
func NewLogger(cfg *LoggerConfig) *StructuredLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level), AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(cfg.Output, opts)
	} else {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}
	ctx := make(map[string]any, len(cfg.CustomAttrs))
	for k, v := range cfg.CustomAttrs {
		ctx[k] = v
	}
	return &StructuredLogger{
		sink:           NewSlogAdapter(slog.New(handler)),
		level:          cfg.Level,
		context:        ctx,
		component:      cfg.Component,
		conversationID: cfg.ConversationID,
	}
}

// NewStructuredLogger wraps any Logger. Level filtering is left to the
// wrapped logger. A StructuredLogger is returned unchanged.
func NewStructuredLogger(l Logger) *StructuredLogger {
	if sl, ok := l.(*StructuredLogger); ok {
		return sl
	}
	return &StructuredLogger{sink: OrNoOp(l), level: LogLevelDebug, context: map[string]any{}}
}

func slogLevel(l LogLevel) slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *StructuredLogger) clone() *StructuredLogger {
	nl := *l
	nl.context = make(map[string]any, len(l.context))
	for k, v := range l.context {
		nl.context[k] = v
	}
	return &nl
}

// WithContext adds a key/value attribute that will be attached to every log entry.
func (l *StructuredLogger) WithContext(key string, value any) *StructuredLogger {
	nl := l.clone()
	nl.context[key] = value
	return nl
}

// WithComponent sets the logical component (gateway, vision, orchestrator, ...).
func (l *StructuredLogger) WithComponent(c string) *StructuredLogger {
	nl := l.clone()
	nl.component = c
	return nl
}

// WithConversation attaches a conversation identifier.
func (l *StructuredLogger) WithConversation(id string) *StructuredLogger {
	nl := l.clone()
	nl.conversationID = id
	return nl
}

// WithRole attaches the agent role the entries relate to.
func (l *StructuredLogger) WithRole(role string) *StructuredLogger {
	nl := l.clone()
	nl.role = role
	return nl
}

func (l *StructuredLogger) buildArgs(args []any) []any {
	out := make([]any, 0, 2*len(l.context)+6+len(args))
	if l.component != "" {
		out = append(out, "component", l.component)
	}
	if l.conversationID != "" {
		out = append(out, "conversation_id", l.conversationID)
	}
	if l.role != "" {
		out = append(out, "agent_role", l.role)
	}
	keys := make([]string, 0, len(l.context))
	for k := range l.context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k, l.context[k])
	}
	return append(out, args...)
}

// Debug logs at debug level.
func (l *StructuredLogger) Debug(msg string, args ...any) {
	if l.level <= LogLevelDebug {
		l.sink.Debug(msg, l.buildArgs(args)...)
	}
}

// Info logs at info level.
func (l *StructuredLogger) Info(msg string, args ...any) {
	if l.level <= LogLevelInfo {
		l.sink.Info(msg, l.buildArgs(args)...)
	}
}

// Warn logs at warn level.
func (l *StructuredLogger) Warn(msg string, args ...any) {
	if l.level <= LogLevelWarn {
		l.sink.Warn(msg, l.buildArgs(args)...)
	}
}

// Error logs at error level.
func (l *StructuredLogger) Error(msg string, args ...any) {
	if l.level <= LogLevelError {
		l.sink.Error(msg, l.buildArgs(args)...)
	}
}

// LogModelCall records provider latency, token usage and outcome for one attempt.
func (l *StructuredLogger) LogModelCall(role, provider, model string, tokens int, dur time.Duration, success bool, err error) {
	args := []any{
		"provider", provider,
		"model", model,
		"tokens", tokens,
		"duration", dur,
		"success", success,
	}
	if l.role == "" && role != "" {
		args = append(args, "agent_role", role)
	}
	if err != nil {
		args = append(args, "error", err.Error())
	}
	if !success {
		l.Warn("model call failed", args...)
		return
	}
	l.Info("model call completed", args...)
}

// LogAnalysis records the outcome of one vision pipeline run.
func (l *StructuredLogger) LogAnalysis(elements int, confidence float64, dur time.Duration, fallback bool) {
	args := []any{
		"element_count", elements,
		"overall_confidence", confidence,
		"duration", dur,
		"fallback", fallback,
	}
	if fallback {
		l.Warn("room analysis completed", args...)
		return
	}
	l.Info("room analysis completed", args...)
}

// LogCollaboration records aggregate collaboration metrics.
func (l *StructuredLogger) LogCollaboration(primary string, collaborators []string, dur time.Duration, degraded bool) {
	l.Info("collaboration completed",
		"primary_role", primary,
		"collaborators", collaborators,
		"duration", dur,
		"degraded", degraded,
	)
}

// StartTimer returns a closure that logs the elapsed duration when invoked.
func (l *StructuredLogger) StartTimer(op string) func() {
	start := time.Now()
	return func() { l.Debug("operation completed", "operation", op, "duration", time.Since(start)) }
}

// NoOpLogger discards all log messages. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}

// NewSlogLogger creates a new StructuredLogger with the specified configuration.
func NewSlogLogger(level LogLevel, format string, addSource bool) *StructuredLogger {
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	if format != "" {
		cfg.Format = format
	}
	cfg.AddSource = addSource
	return NewLogger(cfg)
}

// OrNoOp returns l, or NoOpLogger when l is nil.
func OrNoOp(l Logger) Logger {
	if l == nil {
		return NoOpLogger{}
	}
	return l
}
