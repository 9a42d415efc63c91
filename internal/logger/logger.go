// Package logger provides leveled logging with support for debug, info, warn, and error levels.
// Messages are printf-formatted and written either as text lines or, with the "json"
// format, as one JSON object per line.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents a logging level
type Level int

const (
	// DebugLevel logs are typically voluminous, and are usually disabled in production.
	DebugLevel Level = iota
	// InfoLevel is the default logging priority.
	InfoLevel
	// WarnLevel is used for dropped rows and other recoverable data problems.
	WarnLevel
	// ErrorLevel is used for failed loads and failed notifications.
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	default:
		return "ERROR"
	}
}

// ParseLevel maps a config string to a Level, defaulting to InfoLevel.
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Logger provides leveled logging
type Logger struct {
	mu     sync.Mutex
	level  Level
	json   bool
	out    io.Writer
	logger *log.Logger
}

var (
	// Global logger instance
	defaultLogger *Logger
)

// New creates a Logger writing to w.
func New(w io.Writer, level string, format string) *Logger {
	l := &Logger{
		level: ParseLevel(level),
		json:  strings.ToLower(format) == "json",
		out:   w,
	}

	// Set log flags based on format
	flags := log.LstdFlags | log.Lmicroseconds
	if !l.json {
		flags |= log.Lshortfile
	}
	l.logger = log.New(w, "", flags)
	return l
}

// Init initializes the default logger with the specified level and format
func Init(level string, format string) {
	defaultLogger = New(os.Stderr, level, format)
}

// SetOutput replaces the default logger with one writing to w. Used by tests
// that assert on log output.
func SetOutput(w io.Writer, level string, format string) {
	defaultLogger = New(w, level, format)
}

type entry struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Message string `json:"msg"`
}

func (l *Logger) output(level Level, format string, args ...interface{}) {
	if l.level > level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if l.json {
		line, err := json.Marshal(entry{
			Time:    time.Now().UTC().Format(time.RFC3339Nano),
			Level:   strings.ToLower(level.String()),
			Message: msg,
		})
		if err != nil {
			return
		}
		l.mu.Lock()
		defer l.mu.Unlock()
		_, _ = l.out.Write(append(line, '\n'))
		return
	}
	_ = l.logger.Output(3, "["+level.String()+"] "+msg)
}

// Debugf logs a message at DebugLevel on l.
func (l *Logger) Debugf(format string, args ...interface{}) { l.output(DebugLevel, format, args...) }

// Infof logs a message at InfoLevel on l.
func (l *Logger) Infof(format string, args ...interface{}) { l.output(InfoLevel, format, args...) }

// Warnf logs a message at WarnLevel on l.
func (l *Logger) Warnf(format string, args ...interface{}) { l.output(WarnLevel, format, args...) }

// Errorf logs a message at ErrorLevel on l.
func (l *Logger) Errorf(format string, args ...interface{}) { l.output(ErrorLevel, format, args...) }

// Debug logs a message at DebugLevel
func Debug(format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.output(DebugLevel, format, args...)
	}
}

// Info logs a message at InfoLevel
func Info(format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.output(InfoLevel, format, args...)
	}
}

// Warn logs a message at WarnLevel
func Warn(format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.output(WarnLevel, format, args...)
	}
}

// Error logs a message at ErrorLevel
func Error(format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.output(ErrorLevel, format, args...)
	}
}

// Fatal logs a message at ErrorLevel and exits
func Fatal(format string, args ...interface{}) {
	msg := fmt.Sprintf("[FATAL] "+format, args...)
	if defaultLogger != nil {
		_ = defaultLogger.logger.Output(2, msg)
	} else {
		log.Print(msg)
	}
	os.Exit(1)
}
