// Package logging provides the structured logger used by overlayctl.
// It wraps log/slog so console output keeps the "[timestamp] message"
// shape while the capability log file stays machine-readable JSON.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Log levels supported by the logger
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// Output formats
const (
	FormatLine = "line"
	FormatJSON = "json"
)

// Logger provides leveled logging with persistent attributes.
// It is safe for concurrent use; input callbacks log from hook threads.
type Logger struct {
	logger *slog.Logger
	file   *os.File
	mu     *sync.Mutex
	attrs  []slog.Attr

	// quietSession drops the session id from line records above DEBUG.
	quietSession bool
}

// New creates a Logger writing to w. Format is FormatLine or FormatJSON;
// anything else falls back to FormatLine.
func New(w io.Writer, level string, format string) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	line := !strings.EqualFold(format, FormatJSON)
	if line {
		handler = NewLineHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{
		logger:       slog.New(handler),
		mu:           &sync.Mutex{},
		quietSession: line && opts.Level.Level() > slog.LevelDebug,
	}
}

// NewFileLogger creates a Logger that appends JSON records to path,
// creating parent directories as needed.
func NewFileLogger(path string, level string) (*Logger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := New(file, level, FormatJSON)
	l.file = file
	return l, nil
}

// parseLevel converts a string log level to slog.Level.
// Defaults to INFO if the level string is not recognized.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithSession returns a child Logger tagging every record with the session
// id. Line output keeps the bare "[timestamp] message" records unless the
// level is DEBUG.
func (l *Logger) WithSession(sessionID string) *Logger {
	if l.quietSession {
		return l
	}
	return l.With("session_id", sessionID)
}

// With returns a child Logger with additional key-value attributes.
func (l *Logger) With(args ...any) *Logger {
	if len(args) == 0 {
		return l
	}

	newAttrs := make([]slog.Attr, 0, len(l.attrs)+len(args)/2)
	newAttrs = append(newAttrs, l.attrs...)
	for i := 0; i < len(args)-1; i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		newAttrs = append(newAttrs, slog.Any(key, args[i+1]))
	}

	return &Logger{
		logger:       l.logger,
		file:         l.file,
		mu:           l.mu,
		attrs:        newAttrs,
		quietSession: l.quietSession,
	}
}

// Debug logs at DEBUG level.
func (l *Logger) Debug(msg string, args ...any) {
	l.log(slog.LevelDebug, msg, args...)
}

// Info logs at INFO level.
func (l *Logger) Info(msg string, args ...any) {
	l.log(slog.LevelInfo, msg, args...)
}

// Warn logs at WARN level.
func (l *Logger) Warn(msg string, args ...any) {
	l.log(slog.LevelWarn, msg, args...)
}

// Error logs at ERROR level.
func (l *Logger) Error(msg string, args ...any) {
	l.log(slog.LevelError, msg, args...)
}

func (l *Logger) log(level slog.Level, msg string, args ...any) {
	allArgs := make([]any, 0, len(l.attrs)*2+len(args))
	for _, attr := range l.attrs {
		allArgs = append(allArgs, attr.Key, attr.Value.Any())
	}
	allArgs = append(allArgs, args...)

	l.logger.Log(context.Background(), level, msg, allArgs...)
}

// Close flushes and closes the backing file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		if err := l.file.Sync(); err != nil {
			return fmt.Errorf("failed to sync log file: %w", err)
		}
		if err := l.file.Close(); err != nil {
			return fmt.Errorf("failed to close log file: %w", err)
		}
		l.file = nil
	}
	return nil
}

// NopLogger returns a Logger that discards all output.
func NopLogger() *Logger {
	return New(io.Discard, LevelError, FormatJSON)
}

// ValidLevels returns the list of valid log level strings.
func ValidLevels() []string {
	return []string{LevelDebug, LevelInfo, LevelWarn, LevelError}
}

// ValidFormats returns the list of valid console formats.
func ValidFormats() []string {
	return []string{FormatLine, FormatJSON}
}
