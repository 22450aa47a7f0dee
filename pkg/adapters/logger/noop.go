package logger

import "github.com/user/framecoder/pkg/ports"

// NoopLogger discards everything. Library constructors fall back to it when
// given a nil logger; the CLI uses it for --quiet.
type NoopLogger struct{}

var noop = &NoopLogger{}

// NewNoop returns the shared no-op logger.
func NewNoop() *NoopLogger {
	return noop
}

func (*NoopLogger) Debug(string, ...interface{}) {}
func (*NoopLogger) Info(string, ...interface{})  {}
func (*NoopLogger) Warn(string, ...interface{})  {}
func (*NoopLogger) Error(string, ...interface{}) {}

func (l *NoopLogger) WithComponent(string) ports.Logger {
	return l
}
