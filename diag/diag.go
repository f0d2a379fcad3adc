// Package diag is the diagnostic channel shared by the multiplexer packages.
//
// Logging is a cross-cutting concern, so a single process-wide logger is held
// here, configured once at startup via [SetLogger]. The default logger writes
// warnings and above to stderr, as JSON, or in console format if stderr is a
// terminal.
package diag

import (
	"io"
	"os"
	"sync"

	"github.com/joeycumines/logiface"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Logger is the generified logiface logger used throughout this module.
type Logger = logiface.Logger[logiface.Event]

var global struct {
	logger *Logger
	sync.RWMutex
}

// SetLogger replaces the process-wide logger. A nil logger restores the
// default.
func SetLogger(logger *Logger) {
	global.Lock()
	defer global.Unlock()
	global.logger = logger
}

// L returns the process-wide logger.
func L() *Logger {
	global.RLock()
	logger := global.logger
	global.RUnlock()
	if logger != nil {
		return logger
	}

	global.Lock()
	defer global.Unlock()
	if global.logger == nil {
		global.logger = defaultLogger()
	}
	return global.logger
}

// NewLogger builds a logger writing JSON lines to w, at or above level.
func NewLogger(w io.Writer, level logiface.Level) *Logger {
	impl := &zerologImpl{Z: zerolog.New(w).With().Timestamp().Logger()}
	return logiface.New[*Event](
		logiface.WithEventFactory[*Event](impl),
		logiface.WithWriter[*Event](impl),
		logiface.WithLevel[*Event](level),
	).Logger()
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return NewLogger(io.Discard, logiface.LevelDisabled)
}

func defaultLogger() *Logger {
	var w io.Writer = os.Stderr
	if isTerminal(os.Stderr) {
		w = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	return NewLogger(w, logiface.LevelWarning)
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
