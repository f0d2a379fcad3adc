package pump

import (
	"time"

	"github.com/joeycumines/go-uiselect/uievent"
)

// Status is returned by a single [Toolkit.PumpEvents] pass.
type Status int

const (
	// StatusContinue means the toolkit loop remains usable.
	StatusContinue Status = iota
	// StatusExit means the toolkit loop asked to exit. The pump logs it and
	// carries on, the host decides when to stop.
	StatusExit
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusContinue:
		return "Continue"
	case StatusExit:
		return "Exit"
	default:
		return "Unknown"
	}
}

// Backend describes the toolkit's window system connection.
type Backend struct {
	// Name is informational, e.g. "x11" or "wayland".
	Name string

	// Fd is the connection descriptor, or -1 if there is none.
	Fd int

	// InlineResolution is true when an interrupting event is fully resolved
	// by the pass that delivered it. When false, the pump checks Fd with a
	// zero timeout and, if readable, runs one more zero-timeout pass.
	InlineResolution bool
}

// Toolkit is the window system's main-thread dispatch loop.
//
// PumpEvents and Backend are only ever called from the pump's thread.
// Wakeup may be called from any goroutine.
type Toolkit interface {
	// PumpEvents waits up to timeout for the first event, then dispatches
	// pending events to handler, in arrival order, and returns. Backends
	// without InlineResolution may leave some pending. A zero
	// timeout never blocks. A call to Wakeup makes a blocked pass return.
	PumpEvents(timeout time.Duration, handler func(uievent.Event)) Status

	// Wakeup interrupts a blocked PumpEvents call. If none is in progress,
	// the next one returns promptly.
	Wakeup()

	Backend() Backend
}
