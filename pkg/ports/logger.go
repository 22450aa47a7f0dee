// Package ports defines the interfaces between the encoding core and its
// collaborators: codecs, converters, muxers, frame sources and logging.
package ports

import (
	"fmt"
	"strings"
)

// LogLevel represents the severity level of a log message.
type LogLevel int

const (
	// LevelDebug: per-component details such as stream setup, drains
	// and trailer writes.
	LevelDebug LogLevel = iota
	// LevelInfo: session progress from the orchestrator and CLI.
	LevelInfo
	// LevelWarn: recoverable problems, e.g. a codec fallback.
	LevelWarn
	// LevelError: the session cannot continue.
	LevelError
	// LevelQuiet suppresses all log output.
	LevelQuiet
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelQuiet:
		return "quiet"
	default:
		return "unknown"
	}
}

// ParseLogLevel parses a level name, case-insensitively. An empty name
// is LevelInfo.
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "quiet":
		return LevelQuiet, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Logger is the logging port. msg is a format string that doubles as the
// translation key for console output.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})

	// WithComponent returns a Logger tagging messages with component
	// ("encoder", "mp4mux", "libav", ...).
	WithComponent(component string) Logger
}
