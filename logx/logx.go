// Package logx gives every package in this module named, per-component
// loggers: a registry keyed by name, a level per logger, and
// Debugf/Infof/Warnf/Errorf methods on each Logger, backed by logrus.
package logx

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Level mirrors minilog's DEBUG < INFO < WARN < ERROR < FATAL ordering.
type Level = logrus.Level

const (
	Debug Level = logrus.DebugLevel
	Info  Level = logrus.InfoLevel
	Warn  Level = logrus.WarnLevel
	Error Level = logrus.ErrorLevel
	Fatal Level = logrus.FatalLevel
)

var (
	mu      sync.RWMutex
	loggers = map[string]*Logger{}
)

// Logger is a named, leveled sink. The zero value is not usable; obtain
// one via Named.
type Logger struct {
	name  string
	entry *logrus.Entry
}

// Named returns (creating if necessary) the logger registered under
// name, writing to os.Stderr at Warn level by default — callers that
// want a different sink/level call Configure.
func Named(name string) *Logger {
	mu.RLock()
	if l, ok := loggers[name]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[name]; ok {
		return l
	}
	base := logrus.New()
	base.SetOutput(os.Stderr)
	base.SetLevel(Warn)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l := &Logger{name: name, entry: base.WithField("component", name)}
	loggers[name] = l
	return l
}

// Configure changes the output sink and level for a named logger.
func Configure(name string, out io.Writer, level Level) {
	l := Named(name)
	base := l.entry.Logger
	base.SetOutput(out)
	base.SetLevel(level)
}

func (l *Logger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }

// WithField returns a derived logger carrying an extra structured field,
// e.g. logx.Named("netconn").WithField("conn", id).
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{name: l.name, entry: l.entry.WithField(key, value)}
}
