package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

const appName = "presence"

// New returns the root logger passed to every component. debug forces the
// debug level regardless of level; an unknown level falls back to info.
func New(level string, debug, json bool) *logrus.Entry {
	root := logrus.New()
	root.SetOutput(os.Stderr)
	if json {
		root.SetFormatter(new(logrus.JSONFormatter))
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	if debug {
		lvl = logrus.DebugLevel
	}
	root.SetLevel(lvl)

	host, _ := os.Hostname()
	return root.WithFields(logrus.Fields{
		"app":  appName,
		"host": host,
	})
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Entry {
	return logrus.NewEntry(&logrus.Logger{Out: io.Discard})
}

// OrDiscard returns logger, or a discarding logger when it is nil.
func OrDiscard(logger *logrus.Entry) *logrus.Entry {
	if logger == nil {
		return Discard()
	}
	return logger
}
