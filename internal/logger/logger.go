// Package logger builds the process logger. The terminal belongs to the UI,
// so records go to a rotating JSON file plus any handlers the caller adds.
package logger

import (
	"context"
	"log/slog"
	"strings"

	multi "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"
)

const LevelTrace = slog.Level(-8)

var levelNames = map[slog.Level]string{
	LevelTrace: "TRACE",
}

// Options configures the file sink.
type Options struct {
	File       string
	Level      string
	MaxSizeMB  int
	MaxBackups int
}

// Logger wraps a slog.Logger with an adjustable level and the file it owns.
type Logger struct {
	*slog.Logger

	level *slog.LevelVar
	file  *lumberjack.Logger
}

// New creates a logger writing JSON records to opts.File and fanning out
// to extra. Extra handlers see every record that passes the level.
func New(opts Options, extra ...slog.Handler) *Logger {
	l := &Logger{level: &slog.LevelVar{}}
	l.SetLevel(opts.Level)

	handlerOpts := &slog.HandlerOptions{
		Level: l.level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key != slog.LevelKey {
				return a
			}
			level, ok := a.Value.Any().(slog.Level)
			if !ok {
				return a
			}
			if name, exists := levelNames[level]; exists {
				a.Value = slog.StringValue(name)
			}
			return a
		},
	}

	handlers := make([]slog.Handler, 0, len(extra)+1)
	if opts.File != "" {
		l.file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			Compress:   true,
		}
		handlers = append(handlers, slog.NewJSONHandler(l.file, handlerOpts))
	}
	for _, h := range extra {
		handlers = append(handlers, leveled{Handler: h, level: l.level})
	}

	l.Logger = slog.New(multi.Fanout(handlers...))
	return l
}

// SetLevel changes the minimum level. Unknown names mean info.
func (l *Logger) SetLevel(name string) {
	l.level.Set(ParseLevel(name))
}

// Level returns the current minimum level.
func (l *Logger) Level() slog.Level {
	return l.level.Level()
}

// Trace logs at LevelTrace.
func (l *Logger) Trace(msg string, args ...any) {
	l.Log(context.Background(), LevelTrace, msg, args...)
}

// Close releases the log file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// ParseLevel maps a configured level name to a slog level.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// leveled applies the shared level to a handler that has its own, usually
// higher, threshold.
type leveled struct {
	slog.Handler
	level slog.Leveler
}

func (h leveled) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level.Level() && h.Handler.Enabled(ctx, level)
}

func (h leveled) WithAttrs(attrs []slog.Attr) slog.Handler {
	return leveled{Handler: h.Handler.WithAttrs(attrs), level: h.level}
}

func (h leveled) WithGroup(name string) slog.Handler {
	return leveled{Handler: h.Handler.WithGroup(name), level: h.level}
}
