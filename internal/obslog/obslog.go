// Package obslog is a thin structured-logging façade over logrus. It exists
// so the rest of the daemon depends on a small interface (easy to silence
// or assert against in tests) instead of importing logrus directly
// everywhere, while still emitting the field-shaped log lines the wider
// example corpus's daemon code emits for lifecycle events.
package obslog

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the subset of logging behavior the daemon needs: leveled
// messages with structured fields. Nothing in this package ever logs a
// register value or REPORT payload — those are data-plane, not diagnostics
// (SPEC_FULL.md §4.7).
type Logger interface {
	WithFields(fields map[string]any) Logger
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

type logrusLogger struct {
	entry *logrus.Entry
}

// New builds a Logger writing to w at the given level name ("debug",
// "info", "warn", "error"; defaults to "info" on an unrecognized value).
func New(w io.Writer, level string) Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(level); err == nil {
		l.SetLevel(lvl)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

// Discard returns a Logger that writes nowhere, for tests that don't care
// about log output.
func Discard() Logger {
	return New(io.Discard, "error")
}

// Default returns a Logger writing to stderr at info level, the daemon's
// default wiring.
func Default() Logger {
	return New(os.Stderr, "info")
}

func (l *logrusLogger) WithFields(fields map[string]any) Logger {
	return &logrusLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

func (l *logrusLogger) Debug(msg string) { l.entry.Debug(msg) }
func (l *logrusLogger) Info(msg string)  { l.entry.Info(msg) }
func (l *logrusLogger) Warn(msg string)  { l.entry.Warn(msg) }
func (l *logrusLogger) Error(msg string) { l.entry.Error(msg) }
