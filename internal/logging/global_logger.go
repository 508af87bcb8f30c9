package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	writerMu  sync.Mutex
	logWriter *lumberjack.Logger
)

// FileOptions controls rotating file output.
type FileOptions struct {
	Dir        string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Configure applies a level and output choice in one step. An empty level
// keeps the current one. When file is nil output goes to stderr.
func Configure(level string, reportCaller bool, file *FileOptions) error {
	if level != "" {
		lvl, err := ParseLevel(level)
		if err != nil {
			return err
		}
		SetLevel(lvl)
	}
	if err := ConfigureLogOutput(file); err != nil {
		return err
	}
	SetReportCaller(reportCaller)
	return nil
}

// ConfigureLogOutput switches between rotating file output and stderr.
func ConfigureLogOutput(file *FileOptions) error {
	writerMu.Lock()
	defer writerMu.Unlock()

	if file != nil {
		logDir := file.Dir
		if logDir == "" {
			logDir = "logs"
		}
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return fmt.Errorf("logging: failed to create log directory: %w", err)
		}
		if logWriter != nil {
			_ = logWriter.Close()
		}
		maxSize := file.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 10
		}
		logWriter = &lumberjack.Logger{
			Filename:   filepath.Join(logDir, "stitch.log"),
			MaxSize:    maxSize,
			MaxBackups: file.MaxBackups,
			MaxAge:     file.MaxAgeDays,
		}
		SetOutput(logWriter)
		return nil
	}

	if logWriter != nil {
		_ = logWriter.Close()
		logWriter = nil
	}
	SetOutput(os.Stderr)
	return nil
}

// Close releases the rotating file writer, if any.
func Close() {
	closeLogOutputs()
}

func closeLogOutputs() {
	writerMu.Lock()
	defer writerMu.Unlock()

	if logWriter != nil {
		_ = logWriter.Close()
		logWriter = nil
	}
}
