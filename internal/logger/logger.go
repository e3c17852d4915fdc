// Package logger provides the package-level, level-filtered logging used
// throughout the server, backed by logrus the way shanas-swi-telegraf
// wires up its agent logging.
package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Level mirrors logrus' level ordering so callers never need to import
// logrus directly.
type Level = logrus.Level

const (
	LevelDebug = logrus.DebugLevel
	LevelInfo  = logrus.InfoLevel
	LevelWarn  = logrus.WarnLevel
	LevelError = logrus.ErrorLevel
)

var base = newBase()

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(LevelInfo)
	return l
}

// SetLevel sets the global log level.
func SetLevel(level Level) {
	base.SetLevel(level)
}

// Debug logs a debug message.
func Debug(format string, args ...interface{}) {
	base.Debugf(format, args...)
}

// Info logs an info message.
func Info(format string, args ...interface{}) {
	base.Infof(format, args...)
}

// Warn logs a warning message.
func Warn(format string, args ...interface{}) {
	base.Warnf(format, args...)
}

// Error logs an error message.
func Error(format string, args ...interface{}) {
	base.Errorf(format, args...)
}

// Fields is structured key=value context attached with WithFields.
type Fields = logrus.Fields

// entry carries structured fields through to the leveled methods.
type entry struct {
	*logrus.Entry
}

// WithFields returns a logger scoped to the given structured fields, for
// call sites that want key=value context (peer address, offsets) instead
// of interpolating it into the message.
func WithFields(fields Fields) entry {
	return entry{base.WithFields(fields)}
}

func (e entry) Debug(format string, args ...interface{}) { e.Entry.Debugf(format, args...) }
func (e entry) Info(format string, args ...interface{})  { e.Entry.Infof(format, args...) }
func (e entry) Warn(format string, args ...interface{})  { e.Entry.Warnf(format, args...) }
func (e entry) Error(format string, args ...interface{}) { e.Entry.Errorf(format, args...) }
