package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// CustomHandler renders records as single lines:
//
//	[2006-01-02 15:04:05] [info] [file.go:42] message | key=value key=value
type CustomHandler struct {
	w         io.Writer
	level     *slog.LevelVar
	addSource bool
	preset    []slog.Attr
	mu        *sync.Mutex
}

func NewCustomHandler(w io.Writer, level *slog.LevelVar, addSource bool) *CustomHandler {
	return &CustomHandler{
		w:         w,
		level:     level,
		addSource: addSource,
		mu:        &sync.Mutex{},
	}
}

func (h *CustomHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *CustomHandler) Handle(_ context.Context, r slog.Record) error {
	var line strings.Builder
	line.WriteString("[")
	line.WriteString(r.Time.Format("2006-01-02 15:04:05"))
	line.WriteString("] [")
	line.WriteString(strings.ToLower(r.Level.String()))
	line.WriteString("] ")

	if h.addSource && r.PC != 0 {
		fs := runtime.CallersFrames([]uintptr{r.PC})
		f, _ := fs.Next()
		fmt.Fprintf(&line, "[%s:%d] ", filepath.Base(f.File), f.Line)
	}
	line.WriteString(r.Message)

	n := 0
	writeAttr := func(a slog.Attr) bool {
		if n == 0 {
			line.WriteString(" | ")
		} else {
			line.WriteString(" ")
		}
		n++
		line.WriteString(a.Key)
		line.WriteString("=")
		line.WriteString(fmt.Sprintf("%v", a.Value.Any()))
		return true
	}
	for _, a := range h.preset {
		writeAttr(a)
	}
	r.Attrs(writeAttr)
	line.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, line.String())
	return err
}

func (h *CustomHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.preset = append(append([]slog.Attr(nil), h.preset...), attrs...)
	return &clone
}

func (h *CustomHandler) WithGroup(string) slog.Handler {
	return h
}
