// Package log provides loggers for the control domain of the engine.
// Nothing in this package may be used on the real-time thread.
package log

import (
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
)

// DebugEnv is the environment variable that enables debug level.
const DebugEnv = "ENGINE_DEBUG"

var debug bool

// Logger is a minimal interface for engine loggers.
type Logger interface {
	Debug(...interface{})
	Info(...interface{})
}

// FieldLogger is implemented by loggers that support structured fields.
type FieldLogger interface {
	Logger
	WithFields(logrus.Fields) *logrus.Entry
}

func init() {
	var err error
	debug, err = strconv.ParseBool(os.Getenv(DebugEnv))
	if err != nil {
		debug = false
	}
}

// GetLogger returns a new logger instance.
func GetLogger() *logrus.Logger {
	l := logrus.New()
	if debug {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}

// With returns a logger that attaches fields to every message if l
// supports structured fields. Otherwise l is returned as is.
func With(l Logger, fields logrus.Fields) Logger {
	if fl, ok := l.(FieldLogger); ok {
		return fl.WithFields(fields)
	}
	return l
}

type silentLogger struct{}

func (silentLogger) Debug(args ...interface{}) {}

func (silentLogger) Info(args ...interface{}) {}

// Silent is a logger that discards all messages.
var Silent Logger = silentLogger{}
