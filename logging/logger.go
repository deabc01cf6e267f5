package logging

import (
	"io"
	"log/slog"
	"os"
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

// Logger defines the minimal logging interface for PersonaMesh.
// This allows users to provide their own logger implementation or use the built-in adapters.
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

// HarnessLogger is a Logger whose entries all carry the attached scope:
// component, batch and persona identifiers plus arbitrary context keys.
// Scoping methods return copies, so one scheduler-wide logger fans out into
// cheap per-persona loggers. Trailing args on the log methods are slog-style
// key/value pairs, same as SlogAdapter.
type HarnessLogger struct {
	base      *slog.Logger
	scoped    *slog.Logger
	context   map[string]any
	component string
	batchID   string
	personaID string
}

// LoggerConfig configures construction of a HarnessLogger.
type LoggerConfig struct {
	Level     LogLevel
	Format    string // json or text
	Output    io.Writer
	AddSource bool
	Component string
}

// DefaultLoggerConfig returns a baseline JSON info level configuration.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{Level: LogLevelInfo, Format: "json", Output: os.Stdout}
}

// NewLogger builds a HarnessLogger from a config (or defaults if nil).
func NewLogger(cfg *LoggerConfig) *HarnessLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level), AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(cfg.Output, opts)
	} else {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}
	l := &HarnessLogger{base: slog.New(handler), context: map[string]any{}, component: cfg.Component}
	l.rescope()
	return l
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

func (l *HarnessLogger) clone() *HarnessLogger {
	nl := *l
	nl.context = map[string]any{}
	for k, v := range l.context {
		nl.context[k] = v
	}
	return &nl
}

// rescope rebuilds the attribute-carrying slog.Logger after a scope change.
func (l *HarnessLogger) rescope() {
	args := make([]any, 0, 2*(len(l.context)+3))
	if l.component != "" {
		args = append(args, "component", l.component)
	}
	if l.batchID != "" {
		args = append(args, "batch_id", l.batchID)
	}
	if l.personaID != "" {
		args = append(args, "persona_id", l.personaID)
	}
	for k, v := range l.context {
		args = append(args, k, v)
	}
	l.scoped = l.base.With(args...)
}

// WithContext adds a key/value attribute that will be attached to every log entry.
func (l *HarnessLogger) WithContext(key string, value any) *HarnessLogger {
	nl := l.clone()
	nl.context[key] = value
	nl.rescope()
	return nl
}

// WithComponent sets the logical component (engine, scheduler, generator, etc.).
func (l *HarnessLogger) WithComponent(c string) *HarnessLogger {
	nl := l.clone()
	nl.component = c
	nl.rescope()
	return nl
}

// WithBatch attaches batch and persona identifiers.
func (l *HarnessLogger) WithBatch(batchID, personaID string) *HarnessLogger {
	nl := l.clone()
	nl.batchID = batchID
	nl.personaID = personaID
	nl.rescope()
	return nl
}

// Debug logs at debug level.
func (l *HarnessLogger) Debug(msg string, args ...any) { l.scoped.Debug(msg, args...) }

// Info logs at info level.
func (l *HarnessLogger) Info(msg string, args ...any) { l.scoped.Info(msg, args...) }

// Warn logs at warn level.
func (l *HarnessLogger) Warn(msg string, args ...any) { l.scoped.Warn(msg, args...) }

// Error logs at error level.
func (l *HarnessLogger) Error(msg string, args ...any) { l.scoped.Error(msg, args...) }

// WithBatch scopes a logger to one persona of a batch. A HarnessLogger keeps
// its scope fields; any other Logger gets the identifiers prepended to every
// entry as key/value pairs.
func WithBatch(l Logger, batchID, personaID string) Logger {
	if hl, ok := l.(*HarnessLogger); ok {
		return hl.WithBatch(batchID, personaID)
	}
	return &scopedLogger{base: l, scope: []any{"batch_id", batchID, "persona_id", personaID}}
}

type scopedLogger struct {
	base  Logger
	scope []any
}

func (s *scopedLogger) kv(args []any) []any {
	out := make([]any, 0, len(s.scope)+len(args))
	out = append(out, s.scope...)
	return append(out, args...)
}

func (s *scopedLogger) Debug(msg string, args ...any) { s.base.Debug(msg, s.kv(args)...) }

func (s *scopedLogger) Info(msg string, args ...any) { s.base.Info(msg, s.kv(args)...) }

func (s *scopedLogger) Warn(msg string, args ...any) { s.base.Warn(msg, s.kv(args)...) }

func (s *scopedLogger) Error(msg string, args ...any) { s.base.Error(msg, s.kv(args)...) }

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
