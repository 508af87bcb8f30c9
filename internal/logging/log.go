// Package logging is the SDK's process-wide structured logger. It exposes a
// small leveled API on top of log/slog with field-carrying entries.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

var (
	defaultLogger *slog.Logger
	logLevel                = new(slog.LevelVar)
	logOutput     io.Writer = os.Stderr
	outputMu      sync.RWMutex
	nowFunc       = time.Now
)

// Fields is a set of key/value pairs attached to an entry.
type Fields map[string]any

const (
	DebugLevel = slog.LevelDebug
	InfoLevel  = slog.LevelInfo
	WarnLevel  = slog.LevelWarn
	ErrorLevel = slog.LevelError
)

func init() {
	logLevel.Set(slog.LevelInfo)
	defaultLogger = slog.New(NewCustomHandler(os.Stderr, logLevel, false))
}

func reconfigure(w io.Writer, addSource bool) {
	outputMu.Lock()
	defer outputMu.Unlock()
	logOutput = w
	defaultLogger = slog.New(NewCustomHandler(w, logLevel, addSource))
}

func current() *slog.Logger {
	outputMu.RLock()
	defer outputMu.RUnlock()
	return defaultLogger
}

// SetOutput redirects all log output to w.
func SetOutput(w io.Writer) {
	reconfigure(w, false)
}

// SetReportCaller toggles the file:line prefix on each record.
func SetReportCaller(enabled bool) {
	outputMu.RLock()
	w := logOutput
	outputMu.RUnlock()
	reconfigure(w, enabled)
}

func SetLevel(level slog.Level) {
	logLevel.Set(level)
}

func GetLevel() slog.Level {
	return logLevel.Level()
}

// ParseLevel maps a config string ("debug", "info", "warn", "error") to a level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("logging: unknown level %q", s)
}

func Debugf(format string, args ...any) {
	logAt(slog.LevelDebug, fmt.Sprintf(format, args...), nil)
}

func Infof(format string, args ...any) {
	logAt(slog.LevelInfo, fmt.Sprintf(format, args...), nil)
}

func Warnf(format string, args ...any) {
	logAt(slog.LevelWarn, fmt.Sprintf(format, args...), nil)
}

func Errorf(format string, args ...any) {
	logAt(slog.LevelError, fmt.Sprintf(format, args...), nil)
}

func Debug(msg string) { logAt(slog.LevelDebug, msg, nil) }

func Info(msg string) { logAt(slog.LevelInfo, msg, nil) }

func Warn(msg string) { logAt(slog.LevelWarn, msg, nil) }

func Error(msg string) { logAt(slog.LevelError, msg, nil) }

// Fatalf logs at error level, closes file outputs and exits.
func Fatalf(format string, args ...any) {
	logAt(slog.LevelError, fmt.Sprintf(format, args...), nil)
	closeLogOutputs()
	os.Exit(1)
}

func logAt(level slog.Level, msg string, attrs []slog.Attr) {
	logger := current()
	if !logger.Enabled(context.Background(), level) {
		return
	}

	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])

	r := slog.NewRecord(nowFunc(), level, msg, pcs[0])
	if len(attrs) > 0 {
		r.AddAttrs(attrs...)
	}
	_ = logger.Handler().Handle(context.Background(), r)
}

// Entry accumulates fields for a single log record.
type Entry struct {
	attrs []slog.Attr
}

func WithError(err error) *Entry {
	return &Entry{attrs: []slog.Attr{slog.Any("error", err)}}
}

func WithField(key string, value any) *Entry {
	return &Entry{attrs: []slog.Attr{slog.Any(key, value)}}
}

func WithFields(fields Fields) *Entry {
	e := &Entry{attrs: make([]slog.Attr, 0, len(fields))}
	return e.WithFields(fields)
}

func (e *Entry) WithField(key string, value any) *Entry {
	e.attrs = append(e.attrs, slog.Any(key, value))
	return e
}

func (e *Entry) WithFields(fields Fields) *Entry {
	for k, v := range fields {
		e.attrs = append(e.attrs, slog.Any(k, v))
	}
	return e
}

func (e *Entry) WithError(err error) *Entry {
	e.attrs = append(e.attrs, slog.Any("error", err))
	return e
}

func (e *Entry) Debug(msg string) { logAt(slog.LevelDebug, msg, e.attrs) }

func (e *Entry) Debugf(format string, args ...any) {
	logAt(slog.LevelDebug, fmt.Sprintf(format, args...), e.attrs)
}

func (e *Entry) Info(msg string) { logAt(slog.LevelInfo, msg, e.attrs) }

func (e *Entry) Infof(format string, args ...any) {
	logAt(slog.LevelInfo, fmt.Sprintf(format, args...), e.attrs)
}

func (e *Entry) Warn(msg string) { logAt(slog.LevelWarn, msg, e.attrs) }

func (e *Entry) Warnf(format string, args ...any) {
	logAt(slog.LevelWarn, fmt.Sprintf(format, args...), e.attrs)
}

func (e *Entry) Error(msg string) { logAt(slog.LevelError, msg, e.attrs) }

func (e *Entry) Errorf(format string, args ...any) {
	logAt(slog.LevelError, fmt.Sprintf(format, args...), e.attrs)
}
