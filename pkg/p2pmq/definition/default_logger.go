package definition

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/pyl1b/p2p0mq/pkg/p2pmq/types"
)

// DefaultLogger is the logrus-backed Logger used when the caller does
// not supply its own. Each component requests a named child via
// WithField("component", ...), the Go equivalent of the original's
// logging.getLogger('p2p0mq.concern.hb')-style per-module loggers.
type DefaultLogger struct {
	entry *logrus.Entry
}

// NewDefaultLogger builds a logger writing to stderr at info level.
func NewDefaultLogger() *DefaultLogger {
	log := logrus.New()
	log.Out = os.Stderr
	log.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	log.Level = logrus.InfoLevel
	return &DefaultLogger{entry: logrus.NewEntry(log)}
}

// ToggleDebug flips the underlying logger between info and debug
// level, mirroring the original DefaultLogger.ToggleDebug.
func (l *DefaultLogger) ToggleDebug(enabled bool) {
	if enabled {
		l.entry.Logger.Level = logrus.DebugLevel
	} else {
		l.entry.Logger.Level = logrus.InfoLevel
	}
}

func (l *DefaultLogger) Debug(v ...interface{})                  { l.entry.Debug(v...) }
func (l *DefaultLogger) Debugf(format string, v ...interface{})  { l.entry.Debugf(format, v...) }
func (l *DefaultLogger) Info(v ...interface{})                   { l.entry.Info(v...) }
func (l *DefaultLogger) Infof(format string, v ...interface{})   { l.entry.Infof(format, v...) }
func (l *DefaultLogger) Warn(v ...interface{})                   { l.entry.Warn(v...) }
func (l *DefaultLogger) Warnf(format string, v ...interface{})   { l.entry.Warnf(format, v...) }
func (l *DefaultLogger) Error(v ...interface{})                  { l.entry.Error(v...) }
func (l *DefaultLogger) Errorf(format string, v ...interface{})  { l.entry.Errorf(format, v...) }
func (l *DefaultLogger) Fatal(v ...interface{})                  { l.entry.Fatal(v...) }
func (l *DefaultLogger) Fatalf(format string, v ...interface{})  { l.entry.Fatalf(format, v...) }

func (l *DefaultLogger) WithField(key string, value interface{}) types.Logger {
	return &DefaultLogger{entry: l.entry.WithField(key, value)}
}

var _ types.Logger = (*DefaultLogger)(nil)
