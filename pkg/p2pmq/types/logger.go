package types

// Logger is the logging surface used throughout the node. Components
// request a named child with WithField the way the original Python
// modules used per-module loggers (logging.getLogger('p2p0mq.concern.hb')).
type Logger interface {
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})
	Info(v ...interface{})
	Infof(format string, v ...interface{})
	Warn(v ...interface{})
	Warnf(format string, v ...interface{})
	Error(v ...interface{})
	Errorf(format string, v ...interface{})
	Fatal(v ...interface{})
	Fatalf(format string, v ...interface{})

	// WithField returns a child logger carrying the given field on
	// every subsequent line, without mutating the receiver.
	WithField(key string, value interface{}) Logger
}
