// Package logger writes the client's debug output to a rotating file so a
// headless run leaves something to inspect after the fact.
package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"
)

// maxSize 超过后轮转（10MB）
const maxSize = 10 * 1024 * 1024

var (
	out     *os.File
	logPath string
)

// Init opens the debug log inside dir, rotating an oversized file aside
// first. An empty dir falls back to the per-user app directory.
func Init(dir string) error {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home directory: %w", err)
		}
		dir = filepath.Join(home, ".conquiz")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	logPath = filepath.Join(dir, "debug.log")
	if err := rotateIfLarge(); err != nil {
		return err
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	out = f

	log.SetOutput(out)
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)

	LogInfo("logger: writing to %s", logPath)
	return nil
}

// rotateIfLarge moves an oversized log aside under a timestamped name so
// each run appends to a reasonably sized file.
func rotateIfLarge() error {
	info, err := os.Stat(logPath)
	if err != nil || info.Size() <= maxSize {
		return nil
	}
	backup := fmt.Sprintf("%s.%d", logPath, time.Now().Unix())
	if err := os.Rename(logPath, backup); err != nil {
		return fmt.Errorf("rotate log file: %w", err)
	}
	return nil
}

// Close closes the debug log file
func Close() {
	if out != nil {
		_ = out.Close()
		out = nil
	}
}

// LogInfo logs an info message
func LogInfo(format string, args ...any) {
	log.Printf("[INFO] "+format, args...)
}

// LogError logs an error message
func LogError(format string, args ...any) {
	log.Printf("[ERROR] "+format, args...)
}

// LogPanic logs a panic with stack trace
func LogPanic(r any) {
	log.Printf("[PANIC] %v\n%s", r, debug.Stack())
}

// Path returns the current log file path
func Path() string {
	return logPath
}
