// Package logging provides the key/value logger shared by worker components.
package logging

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// Logger provides structured logging for the worker
type Logger struct {
	prefix string
	debug  bool
	logger *log.Logger
}

// NewLogger creates a new logger with a component prefix. Debug output is
// enabled when LOG_DEBUG is set to a truthy value.
func NewLogger(prefix string) *Logger {
	debugEnv := strings.ToLower(os.Getenv("LOG_DEBUG"))
	return &Logger{
		prefix: prefix,
		debug:  debugEnv == "1" || debugEnv == "true",
		logger: log.New(os.Stdout, fmt.Sprintf("[%s] ", prefix), log.LstdFlags),
	}
}

// Info logs an informational message with key-value pairs
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.logWithKV("INFO", msg, keysAndValues...)
}

// Warn logs a warning message with key-value pairs
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.logWithKV("WARN", msg, keysAndValues...)
}

// Error logs an error message with key-value pairs
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.logWithKV("ERROR", msg, keysAndValues...)
}

// Debug logs a debug message with key-value pairs
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	if !l.debug {
		return
	}
	l.logWithKV("DEBUG", msg, keysAndValues...)
}

func (l *Logger) logWithKV(level, msg string, keysAndValues ...interface{}) {
	var sb strings.Builder
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fmt.Fprintf(&sb, " %v=%v", keysAndValues[i], keysAndValues[i+1])
	}
	l.logger.Printf("[%s] %s%s", level, msg, sb.String())
}
