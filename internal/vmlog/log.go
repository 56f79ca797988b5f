// Package vmlog centralises structured logging for the VM core. A
// component that logs (the process lifecycle, the cmd/smvmrun driver)
// does so through a *logrus.Entry tagged with a "component" field so a
// host embedding this module can filter logs per subsystem.
package vmlog

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	once sync.Once
	base *logrus.Logger
)

// Base returns the shared *logrus.Logger used by the VM core. Output goes
// to stderr by default so a hosting process can still use stdout freely;
// level defaults to Info and can be raised with SetLevel.
func Base() *logrus.Logger {
	once.Do(func() {
		base = logrus.New()
		base.SetOutput(os.Stderr)
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		base.SetLevel(logrus.InfoLevel)
	})
	return base
}

// SetLevel adjusts the shared logger's verbosity, e.g. from vmconfig.
func SetLevel(level logrus.Level) {
	Base().SetLevel(level)
}

// For returns a component-scoped entry, e.g. vmlog.For("process").
func For(component string) *logrus.Entry {
	return Base().WithField("component", component)
}

// ForProcess returns an entry scoped to a specific process id, used by the
// process lifecycle code to tag its log lines with the pid they concern.
func ForProcess(pid uint64) *logrus.Entry {
	return Base().WithFields(logrus.Fields{
		"component": "process",
		"pid":       pid,
	})
}

// ParseLevel wraps logrus.ParseLevel so callers outside this package
// (cmd/smvmrun's -log-level flag, vmconfig's LogLevel field) don't need
// their own import of logrus just to validate a level string.
func ParseLevel(level string) (logrus.Level, error) {
	return logrus.ParseLevel(level)
}
