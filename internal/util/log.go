package util

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// LogLevel is the minimum severity written to the console log
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	logMu        sync.Mutex
	logLevel     = LevelInfo
	logOutput    io.Writer = os.Stderr
	colorEnabled = true
)

// SetLogLevel sets the minimum level to display
func SetLogLevel(level LogLevel) {
	logMu.Lock()
	logLevel = level
	logMu.Unlock()
}

// SetVerbose switches the console log to debug level
func SetVerbose(verbose bool) {
	if verbose {
		SetLogLevel(LevelDebug)
	}
}

// SetQuiet restricts the console log to errors
func SetQuiet(quiet bool) {
	if quiet {
		SetLogLevel(LevelError)
	}
}

// IsQuiet reports whether informational output is suppressed
func IsQuiet() bool {
	logMu.Lock()
	defer logMu.Unlock()
	return logLevel >= LevelError
}

// SetColors enables or disables ANSI colors
func SetColors(enabled bool) {
	logMu.Lock()
	colorEnabled = enabled
	logMu.Unlock()
}

// SetLogOutput redirects the console log. Tests use it to capture output.
func SetLogOutput(w io.Writer) {
	logMu.Lock()
	logOutput = w
	logMu.Unlock()
}

const (
	ansiGray   = "\033[90m"
	ansiCyan   = "\033[36m"
	ansiYellow = "\033[33m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiReset  = "\033[0m"
)

func logf(level LogLevel, color, tag, format string, args ...interface{}) {
	logMu.Lock()
	defer logMu.Unlock()
	if level < logLevel {
		return
	}
	ts := time.Now().Format("15:04:05")
	if colorEnabled {
		ts = color + ts + ansiReset
	}
	fmt.Fprintf(logOutput, "%s %s %s\n", ts, tag, fmt.Sprintf(format, args...))
}

// DebugLog logs debug messages
func DebugLog(format string, args ...interface{}) {
	logf(LevelDebug, ansiGray, "[DEBUG]", format, args...)
}

// InfoLog logs informational messages
func InfoLog(format string, args ...interface{}) {
	logf(LevelInfo, ansiCyan, "[INFO] ", format, args...)
}

// WarnLog logs warnings
func WarnLog(format string, args ...interface{}) {
	logf(LevelWarn, ansiYellow, "[WARN] ", format, args...)
}

// ErrorLog logs errors. Shown even in quiet mode.
func ErrorLog(format string, args ...interface{}) {
	logf(LevelError, ansiRed, "[ERROR]", format, args...)
}

// SuccessLog logs completion messages at info level
func SuccessLog(format string, args ...interface{}) {
	logf(LevelInfo, ansiGreen, "[OK]   ", format, args...)
}
