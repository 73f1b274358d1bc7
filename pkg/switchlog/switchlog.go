// Package switchlog provides leveled logging for the switch core and its
// engines, grounded on pkg/node/log.go.
package switchlog

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

// Level represents the severity level of log messages.
type Level int

const (
	// LevelDebug represents debug level messages.
	LevelDebug Level = iota
	// LevelInfo represents informational messages.
	LevelInfo
	// LevelWarn represents warning messages.
	LevelWarn
	// LevelError represents error messages.
	LevelError
	// LevelFatal represents fatal error messages.
	LevelFatal
)

// levelFromString converts a string to a Level, defaulting to LevelInfo.
func levelFromString(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// Logger provides leveled logging for one engine or component.
type Logger struct {
	Level Level

	prefix string

	debugLogger *log.Logger
	infoLogger  *log.Logger
	warnLogger  *log.Logger
	errorLogger *log.Logger
	fatalLogger *log.Logger
}

// New creates a new Logger with the given component prefix and level name.
func New(prefix string, level string) *Logger {
	logLevel := levelFromString(level)

	return &Logger{
		Level:       logLevel,
		prefix:      prefix,
		debugLogger: log.New(os.Stdout, fmt.Sprintf("[DEBUG] %s: ", prefix), 0),
		infoLogger:  log.New(os.Stdout, fmt.Sprintf("[INFO] %s: ", prefix), 0),
		warnLogger:  log.New(os.Stderr, fmt.Sprintf("[WARN] %s: ", prefix), 0),
		errorLogger: log.New(os.Stderr, fmt.Sprintf("[ERROR] %s: ", prefix), 0),
		fatalLogger: log.New(os.Stderr, fmt.Sprintf("[FATAL] %s: ", prefix), 0),
	}
}

func (l *Logger) formatMessage(format string, args ...interface{}) string {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	return fmt.Sprintf("%s %s", timestamp, fmt.Sprintf(format, args...))
}

// Debug logs a debug level message.
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.Level <= LevelDebug {
		l.debugLogger.Println(l.formatMessage(format, args...))
	}
}

// Info logs an info level message.
func (l *Logger) Info(format string, args ...interface{}) {
	if l.Level <= LevelInfo {
		l.infoLogger.Println(l.formatMessage(format, args...))
	}
}

// Warn logs a warning level message.
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.Level <= LevelWarn {
		l.warnLogger.Println(l.formatMessage(format, args...))
	}
}

// Error logs an error level message.
func (l *Logger) Error(format string, args ...interface{}) {
	if l.Level <= LevelError {
		l.errorLogger.Println(l.formatMessage(format, args...))
	}
}

// Fatal logs a fatal level message and terminates the process.
func (l *Logger) Fatal(format string, args ...interface{}) {
	if l.Level <= LevelFatal {
		l.fatalLogger.Println(l.formatMessage(format, args...))
		os.Exit(1)
	}
}

// SetLevel changes the log level of the logger at runtime.
func (l *Logger) SetLevel(level string) {
	l.Level = levelFromString(level)
	l.Info("log level set to %s", level)
}
