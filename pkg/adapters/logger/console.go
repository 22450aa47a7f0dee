// Package logger provides logging implementations.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/ideamans/go-l10n"
	"github.com/mattn/go-isatty"
	"github.com/user/framecoder/pkg/ports"
)

const (
	colorReset  = "\033[0m"
	colorGray   = "\033[90m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorCyan   = "\033[36m"
)

// console is shared by a logger and all loggers derived from it so lines
// from concurrent components (ffmpeg reader, libav callbacks) never interleave.
type console struct {
	mu     sync.Mutex
	out    io.Writer // debug and info
	errOut io.Writer // warn and error
	color  bool
}

// ConsoleLogger writes translated, optionally coloured lines.
type ConsoleLogger struct {
	level     ports.LogLevel
	component string
	c         *console
}

// NewConsole logs debug and info to stdout, warnings and errors to stderr.
func NewConsole(level ports.LogLevel) *ConsoleLogger {
	return NewConsoleTo(os.Stdout, os.Stderr, level)
}

// NewConsoleTo logs to out and errOut. Colour is enabled when out is a
// terminal.
func NewConsoleTo(out, errOut io.Writer, level ports.LogLevel) *ConsoleLogger {
	return &ConsoleLogger{
		level: level,
		c: &console{
			out:    out,
			errOut: errOut,
			color:  isTerminal(out),
		},
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (l *ConsoleLogger) Debug(msg string, args ...interface{}) {
	l.log(ports.LevelDebug, msg, args...)
}

func (l *ConsoleLogger) Info(msg string, args ...interface{}) {
	l.log(ports.LevelInfo, msg, args...)
}

func (l *ConsoleLogger) Warn(msg string, args ...interface{}) {
	l.log(ports.LevelWarn, msg, args...)
}

func (l *ConsoleLogger) Error(msg string, args ...interface{}) {
	l.log(ports.LevelError, msg, args...)
}

// WithComponent returns a logger tagging lines with component. Nested
// components are joined with a slash, e.g. [encoder/libav].
func (l *ConsoleLogger) WithComponent(component string) ports.Logger {
	if l.component != "" && component != "" && !strings.HasPrefix(component, l.component+"/") {
		component = l.component + "/" + component
	}
	return &ConsoleLogger{level: l.level, component: component, c: l.c}
}

func (l *ConsoleLogger) log(level ports.LogLevel, msg string, args ...interface{}) {
	if level < l.level {
		return
	}
	line := l10n.F(msg, args...)

	color := l.c.color
	if l.component != "" {
		if color {
			line = fmt.Sprintf("%s[%s]%s %s", colorCyan, l.component, colorReset, line)
		} else {
			line = fmt.Sprintf("[%s] %s", l.component, line)
		}
	}
	if color {
		switch level {
		case ports.LevelDebug:
			line = colorGray + line + colorReset
		case ports.LevelWarn:
			line = colorYellow + line + colorReset
		case ports.LevelError:
			line = colorRed + line + colorReset
		}
	}

	w := l.c.out
	if level >= ports.LevelWarn {
		w = l.c.errOut
	}
	l.c.mu.Lock()
	fmt.Fprintln(w, line)
	l.c.mu.Unlock()
}
