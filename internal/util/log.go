package util

import (
	"fmt"
	"io"

	"github.com/pterm/pterm"
)

func init() {
	pterm.DefaultLogger.ShowTime = true
	pterm.DefaultLogger.TimeFormat = "02 Jan 15:04:05"
	pterm.DefaultLogger.MaxWidth = 1000
}

// Leveled logging functions backed by pterm's default logger.
// All output goes to stderr unless redirected with SetLogOutput.

func LogDebug(format string, args ...interface{}) {
	pterm.DefaultLogger.Debug(fmt.Sprintf(format, args...))
}

func LogInfo(format string, args ...interface{}) {
	pterm.DefaultLogger.Info(fmt.Sprintf(format, args...))
}

func LogSuccess(format string, args ...interface{}) {
	pterm.DefaultLogger.Info(fmt.Sprintf(format, args...))
}

func LogWarning(format string, args ...interface{}) {
	pterm.DefaultLogger.Warn(fmt.Sprintf(format, args...))
}

func LogError(format string, args ...interface{}) {
	pterm.DefaultLogger.Error(fmt.Sprintf(format, args...))
}

// EnableDebug configures the logger to show debug messages.
func EnableDebug() {
	pterm.DefaultLogger.Level = pterm.LogLevelDebug
}

// SetLogOutput redirects all log output, e.g. to io.Discard in tests.
func SetLogOutput(w io.Writer) {
	pterm.DefaultLogger.Writer = w
}

// ---------------------------------------------------------------------------
// Per-connection logging
// ---------------------------------------------------------------------------

// ConnLogger prefixes every line with a connection tag ("[1a2b3c4d]") so interleaved
// host/client output stays readable. The zero value logs untagged.
type ConnLogger struct {
	tag string
}

// NewConnLogger returns a logger for the given ConnTag value.
func NewConnLogger(tag uint32) ConnLogger {
	return ConnLogger{tag: FormatTag(tag)}
}

func (l ConnLogger) prefix(format string) string {
	if l.tag == "" {
		return format
	}
	return l.tag + " " + format
}

func (l ConnLogger) Debug(format string, args ...interface{}) {
	LogDebug(l.prefix(format), args...)
}

func (l ConnLogger) Info(format string, args ...interface{}) {
	LogInfo(l.prefix(format), args...)
}

func (l ConnLogger) Warning(format string, args ...interface{}) {
	LogWarning(l.prefix(format), args...)
}

func (l ConnLogger) Error(format string, args ...interface{}) {
	LogError(l.prefix(format), args...)
}
