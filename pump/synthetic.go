//go:build unix

package pump

import (
	"sync"
	"time"

	"github.com/joeycumines/go-uiselect/readiness"
	"github.com/joeycumines/go-uiselect/uievent"
)

// Synthetic is an in-process Toolkit fed by Inject, for headless hosts and
// tests. Its connection descriptor is readable whenever events are queued.
type Synthetic struct {
	events  chan uievent.Event
	wake    chan struct{}
	conn    *readiness.Token
	backend Backend
	mu      sync.Mutex
	status  Status
	closed  bool
}

// NewSynthetic returns a Synthetic toolkit. inline sets
// [Backend.InlineResolution]. capacity bounds the number of queued events
// (Inject blocks when full).
func NewSynthetic(inline bool, capacity int) (*Synthetic, error) {
	conn, err := readiness.NewToken()
	if err != nil {
		return nil, err
	}
	name := "synthetic"
	if inline {
		name = "synthetic-inline"
	}
	return &Synthetic{
		events: make(chan uievent.Event, max(capacity, 1)),
		wake:   make(chan struct{}, 1),
		conn:   conn,
		backend: Backend{
			Name:             name,
			Fd:               conn.Fd(),
			InlineResolution: inline,
		},
	}, nil
}

// Inject queues e and wakes a blocked pass. Safe from any goroutine.
func (x *Synthetic) Inject(e uievent.Event) {
	x.events <- e
	_ = x.conn.Fire()
	x.Wakeup()
}

// InjectAfter injects e once d elapses.
func (x *Synthetic) InjectAfter(d time.Duration, e uievent.Event) *time.Timer {
	return time.AfterFunc(d, func() { x.Inject(e) })
}

// SetStatus sets the status returned by subsequent passes.
func (x *Synthetic) SetStatus(status Status) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.status = status
}

// Wakeup implements Toolkit.
func (x *Synthetic) Wakeup() {
	select {
	case x.wake <- struct{}{}:
	default:
	}
}

// Backend implements Toolkit.
func (x *Synthetic) Backend() Backend {
	return x.backend
}

// PumpEvents implements Toolkit. An inline backend dispatches every queued
// event per pass, otherwise only the first, leaving the connection
// descriptor readable for the rest. Every pass ends with AboutToWait.
func (x *Synthetic) PumpEvents(timeout time.Duration, handler func(uievent.Event)) Status {
	limit := 1
	if x.backend.InlineResolution {
		limit = -1
	}

	var delivered int
	if timeout > 0 && len(x.events) == 0 {
		timer := time.NewTimer(timeout)
		select {
		case e := <-x.events:
			handler(e)
			delivered++
		case <-x.wake:
		case <-timer.C:
		}
		timer.Stop()
	}

	// reset before draining, so a concurrent Inject re-arms it
	x.conn.Reset()
	for limit < 0 || delivered < limit {
		select {
		case e := <-x.events:
			handler(e)
			delivered++
			continue
		default:
		}
		break
	}
	if len(x.events) != 0 {
		_ = x.conn.Fire()
	}

	handler(uievent.Event{Class: uievent.ClassAboutToWait})

	x.mu.Lock()
	defer x.mu.Unlock()
	return x.status
}

// Close releases the connection descriptor.
func (x *Synthetic) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return nil
	}
	x.closed = true
	return x.conn.Close()
}
