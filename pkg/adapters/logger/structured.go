package logger

import (
	"io"

	"github.com/rs/zerolog"
	"github.com/user/framecoder/pkg/ports"
)

// StructuredLogger writes one JSON object per message using zerolog.
// Messages are not translated; the key is formatted with its arguments.
type StructuredLogger struct {
	log zerolog.Logger
}

// NewStructured creates a JSON logger writing to w at the specified level.
func NewStructured(w io.Writer, level ports.LogLevel) *StructuredLogger {
	return &StructuredLogger{
		log: zerolog.New(w).Level(zerologLevel(level)).With().Timestamp().Logger(),
	}
}

func (l *StructuredLogger) Debug(msg string, args ...interface{}) {
	l.log.Debug().Msgf(msg, args...)
}

func (l *StructuredLogger) Info(msg string, args ...interface{}) {
	l.log.Info().Msgf(msg, args...)
}

func (l *StructuredLogger) Warn(msg string, args ...interface{}) {
	l.log.Warn().Msgf(msg, args...)
}

func (l *StructuredLogger) Error(msg string, args ...interface{}) {
	l.log.Error().Msgf(msg, args...)
}

// WithComponent returns a logger that adds a "component" field.
func (l *StructuredLogger) WithComponent(component string) ports.Logger {
	return &StructuredLogger{
		log: l.log.With().Str("component", component).Logger(),
	}
}

func zerologLevel(level ports.LogLevel) zerolog.Level {
	switch level {
	case ports.LevelDebug:
		return zerolog.DebugLevel
	case ports.LevelInfo:
		return zerolog.InfoLevel
	case ports.LevelWarn:
		return zerolog.WarnLevel
	case ports.LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.Disabled
	}
}

var (
	_ ports.Logger = (*StructuredLogger)(nil)
	_ ports.Logger = (*ConsoleLogger)(nil)
	_ ports.Logger = (*NoopLogger)(nil)
)
