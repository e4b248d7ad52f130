// Package logging configures the application-wide structured loggers.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Custom levels beyond the slog defaults.
const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

var (
	structuredLogger    *slog.Logger
	humanReadableLogger *slog.Logger
	structuredLevel     = new(slog.LevelVar)
	humanReadableLevel  = new(slog.LevelVar)
)

// replaceLevelNames renames the custom TRACE/FATAL levels in handler output.
func replaceLevelNames(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level := a.Value.Any().(slog.Level)
		if label, ok := levelNames[level]; ok {
			a.Value = slog.StringValue(label)
		}
	}
	return a
}

func newJSONHandler(w io.Writer, level slog.Leveler) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelNames,
	})
}

func newTextHandler(w io.Writer, level slog.Leveler) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelNames,
	})
}

// Init initializes the logging system with a structured JSON logger on stdout
// and a human-readable text logger on stderr. The structured logger becomes
// the process default.
func Init() {
	structuredLevel.Set(slog.LevelDebug)
	humanReadableLevel.Set(slog.LevelInfo)

	structuredLogger = slog.New(newJSONHandler(os.Stdout, structuredLevel))
	humanReadableLogger = slog.New(newTextHandler(os.Stderr, humanReadableLevel))

	slog.SetDefault(structuredLogger)
}

// SetLevel sets the minimum logging level for both loggers.
func SetLevel(level slog.Level) {
	structuredLevel.Set(level)
	humanReadableLevel.Set(level)
}

// SetOutput redirects logger output, e.g. for tests.
func SetOutput(structuredOutput, humanReadableOutput io.Writer) {
	structuredLogger = slog.New(newJSONHandler(structuredOutput, structuredLevel))
	humanReadableLogger = slog.New(newTextHandler(humanReadableOutput, humanReadableLevel))
	slog.SetDefault(structuredLogger)
}

// Structured returns the globally configured structured (JSON) logger.
// Returns nil if Init() has not been called.
func Structured() *slog.Logger {
	return structuredLogger
}

// HumanReadable returns the globally configured human-readable logger.
// Returns nil if Init() has not been called.
func HumanReadable() *slog.Logger {
	return humanReadableLogger
}

// ForService creates a logger with the 'service' attribute added, using the
// global structured logger as the base. Returns nil if Init() has not run.
func ForService(serviceName string) *slog.Logger {
	if structuredLogger == nil {
		return nil
	}
	return structuredLogger.With("service", serviceName)
}

// Convenience functions using the default logger.

func Debug(msg string, args ...any) { slog.Debug(msg, args...) }
func Info(msg string, args ...any)  { slog.Info(msg, args...) }
func Warn(msg string, args ...any)  { slog.Warn(msg, args...) }
func Error(msg string, args ...any) { slog.Error(msg, args...) }

// Fatal logs at the custom FATAL level and exits.
func Fatal(msg string, args ...any) {
	slog.Log(context.TODO(), LevelFatal, msg, args...)
	os.Exit(1)
}

// Trace logs at the custom TRACE level.
func Trace(msg string, args ...any) {
	slog.Log(context.TODO(), LevelTrace, msg, args...)
}

// FileRotation carries log rotation settings, resolved by the conf package.
type FileRotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// DefaultRotation keeps a month of daily logs capped at 100 MB each.
func DefaultRotation() FileRotation {
	return FileRotation{MaxSizeMB: 100, MaxBackups: 30, MaxAgeDays: 28}
}

// newRotatingWriter opens a lumberjack writer for filePath, creating the log
// directory if needed.
func newRotatingWriter(filePath string, rotation FileRotation) (*lumberjack.Logger, error) {
	logDir := filepath.Dir(filePath)
	if logDir != "." {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}
	}

	if rotation.MaxSizeMB <= 0 {
		rotation = DefaultRotation()
	}

	return &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    rotation.MaxSizeMB,
		MaxBackups: rotation.MaxBackups,
		MaxAge:     rotation.MaxAgeDays,
		Compress:   false,
	}, nil
}

// NewFileLogger creates a slog.Logger writing JSON to filePath with lumberjack
// rotation, tagged with the given service name. It returns the logger, a
// close function for the underlying writer, and an error if setup fails.
func NewFileLogger(filePath, serviceName string, level slog.Leveler, rotation FileRotation) (*slog.Logger, func() error, error) {
	logWriter, err := newRotatingWriter(filePath, rotation)
	if err != nil {
		return nil, nil, err
	}

	logger := slog.New(newJSONHandler(logWriter, level)).With("service", serviceName)
	return logger, logWriter.Close, nil
}

// EnableMainFileLog redirects the structured logger to a rotating file and
// makes it the process default, keeping stdout free for command output.
// Loggers created by ForService afterwards write to the same file. It returns
// a close function for the underlying writer.
func EnableMainFileLog(filePath string, rotation FileRotation) (func() error, error) {
	logWriter, err := newRotatingWriter(filePath, rotation)
	if err != nil {
		return nil, err
	}

	structuredLogger = slog.New(newJSONHandler(logWriter, structuredLevel))
	slog.SetDefault(structuredLogger)
	return logWriter.Close, nil
}
