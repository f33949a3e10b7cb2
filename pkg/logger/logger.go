// Package logger provides the structured logger shared by every service in the module.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is a logrus entry pre-tagged with the owning component name.
type Logger struct {
	*logrus.Entry
}

// New builds a logger for the named component.
// level is one of debug|info|warn|error (default info); format is json|text (default text).
func New(name, level, format string) *Logger {
	base := logrus.New()
	base.SetOutput(os.Stdout)
	base.SetLevel(parseLevel(level))

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		base.SetFormatter(&logrus.JSONFormatter{})
	default:
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return &Logger{Entry: base.WithField("component", name)}
}

// NewDefault creates an info-level text logger for the component.
func NewDefault(name string) *Logger {
	return New(name, "info", "text")
}

// NewDiscard returns a logger that drops everything. Handy in tests.
func NewDiscard() *Logger {
	base := logrus.New()
	base.SetOutput(io.Discard)
	return &Logger{Entry: logrus.NewEntry(base)}
}

// Named derives a logger for a sub-component sharing the same output and level.
func (l *Logger) Named(name string) *Logger {
	return &Logger{Entry: l.Entry.WithField("component", name)}
}

func parseLevel(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
