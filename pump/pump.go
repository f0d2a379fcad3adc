//go:build unix

package pump

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-uiselect/diag"
	"github.com/joeycumines/go-uiselect/fdset"
	"github.com/joeycumines/go-uiselect/readiness"
	"github.com/joeycumines/go-uiselect/uievent"
)

// Standard errors.
var (
	// ErrNotMainThread is returned when the pump is driven from any goroutine
	// other than the one that created it.
	ErrNotMainThread = errors.New("pump: not on the main thread")

	// ErrBusy is returned by re-entrant calls.
	ErrBusy = errors.New("pump: already running")
)

// Reason is why [Pump.Run] returned.
type Reason int

const (
	// ReasonDeadline means the deadline elapsed with nothing captured.
	ReasonDeadline Reason = iota
	// ReasonEvent means at least one interrupting event was captured.
	ReasonEvent
	// ReasonStopped means the stop condition became true.
	ReasonStopped
	// ReasonInterrupted means Interrupt was called.
	ReasonInterrupted
)

// String returns a human-readable representation of the reason.
func (r Reason) String() string {
	switch r {
	case ReasonDeadline:
		return "Deadline"
	case ReasonEvent:
		return "Event"
	case ReasonStopped:
		return "Stopped"
	case ReasonInterrupted:
		return "Interrupted"
	default:
		return "Unknown"
	}
}

// Result summarises one Run.
type Result struct {
	Reason Reason

	// Captured counts interrupting events appended to the buffer.
	Captured int

	// Passes counts calls into the toolkit.
	Passes int
}

// Pump drives a [Toolkit] on the thread it was created on.
type Pump struct {
	toolkit       Toolkit
	buffer        *uievent.Buffer
	interrupter   *Interrupter
	handler       func(uievent.Event)
	onAboutToWait func()
	logger        *diag.Logger
	limiter       *diag.Limiter
	slice         time.Duration
	owner         uint64
	running       atomic.Bool
	interrupts    atomic.Uint64
}

// New binds toolkit to the calling goroutine, locking it to its OS thread.
// Call it from the main thread (e.g. main, after runtime.LockOSThread in
// init), since that is where window systems require their loop to run.
func New(toolkit Toolkit, opts ...Option) (*Pump, error) {
	if toolkit == nil {
		return nil, errors.New("pump: nil toolkit")
	}
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	runtime.LockOSThread()
	return &Pump{
		toolkit:       toolkit,
		buffer:        cfg.buffer,
		interrupter:   cfg.interrupter,
		handler:       cfg.handler,
		onAboutToWait: cfg.onAboutToWait,
		logger:        cfg.logger,
		limiter:       cfg.limiter,
		slice:         cfg.slice,
		owner:         getGoroutineID(),
	}, nil
}

// Toolkit returns the driven toolkit.
func (p *Pump) Toolkit() Toolkit {
	return p.toolkit
}

// Buffer returns the buffer interrupting events are appended to.
func (p *Pump) Buffer() *uievent.Buffer {
	return p.buffer
}

// OnMainThread reports whether the caller is the pump's thread.
func (p *Pump) OnMainThread() bool {
	return getGoroutineID() == p.owner
}

// Wakeup makes a blocked pass return. Safe from any goroutine.
func (p *Pump) Wakeup() {
	p.toolkit.Wakeup()
}

// Interrupt ends the Run in progress with ReasonInterrupted, and raises the
// legacy path wake. A Run that starts after Interrupt is unaffected. Safe
// from any goroutine.
func (p *Pump) Interrupt() {
	p.interrupts.Add(1)
	p.raise()
	p.toolkit.Wakeup()
}

// Close releases the thread lock taken by New. It must be called on the
// pump's thread.
func (p *Pump) Close() error {
	if !p.OnMainThread() {
		return ErrNotMainThread
	}
	runtime.UnlockOSThread()
	return nil
}

// Run pumps until the deadline, an interrupting event, Interrupt, or stop
// returning true. stop is checked after every pass, and whoever makes it
// true must call Wakeup. A zero-timeout pass always runs first, so events
// already queued win over a stop condition that is already true.
func (p *Pump) Run(deadline time.Time, stop func() bool) (Result, error) {
	if !p.OnMainThread() {
		return Result{}, ErrNotMainThread
	}
	if !p.running.CompareAndSwap(false, true) {
		return Result{}, ErrBusy
	}
	defer p.running.Store(false)

	interrupts := p.interrupts.Load()
	if d := time.Until(deadline); d > 0 {
		timer := time.AfterFunc(d, p.toolkit.Wakeup)
		defer timer.Stop()
	}

	var (
		result  Result
		timeout time.Duration
	)
	for {
		result.Passes++
		result.Captured += p.pass(timeout)

		if result.Captured > 0 {
			result.Captured += p.resolve()
			result.Reason = ReasonEvent
			return result, nil
		}
		if p.interrupts.Load() != interrupts {
			result.Reason = ReasonInterrupted
			return result, nil
		}
		if stop != nil && stop() {
			result.Reason = ReasonStopped
			return result, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			result.Reason = ReasonDeadline
			return result, nil
		}
		timeout = min(remaining, p.slice)
	}
}

// Pass runs a single toolkit pass, returning the number of interrupting
// events captured. Non-inline backends are resolved as in Run.
func (p *Pump) Pass(timeout time.Duration) (int, error) {
	if !p.OnMainThread() {
		return 0, ErrNotMainThread
	}
	if !p.running.CompareAndSwap(false, true) {
		return 0, ErrBusy
	}
	defer p.running.Store(false)

	n := p.pass(timeout)
	if n > 0 {
		n += p.resolve()
	}
	return n, nil
}

func (p *Pump) pass(timeout time.Duration) (captured int) {
	status := p.toolkit.PumpEvents(timeout, func(e uievent.Event) {
		if p.dispatch(e) {
			captured++
		}
	})
	if status != StatusContinue {
		p.failure("toolkit pass", fmt.Errorf("pump: toolkit returned %v", status))
	}
	return captured
}

// resolve picks up events queued behind the one that interrupted, for
// backends that do not resolve them in the same pass.
func (p *Pump) resolve() int {
	backend := p.toolkit.Backend()
	if backend.InlineResolution || backend.Fd < 0 {
		return 0
	}
	out, err := readiness.Probe(fdset.NewWatch([]int{backend.Fd}, nil))
	if err != nil {
		p.failure("connection probe", err)
		return 0
	}
	if out.Empty() {
		return 0
	}
	return p.pass(0)
}

// dispatch handles one event, reporting whether it was captured. Panics
// from hooks are logged and swallowed.
func (p *Pump) dispatch(e uievent.Event) (captured bool) {
	defer func() {
		if r := recover(); r != nil {
			p.failure("dispatch "+e.Class.String(), fmt.Errorf("pump: panic: %v", r))
		}
	}()

	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	switch {
	case e.Class.Interrupts():
		p.buffer.Append(e)
		captured = true
		p.raise()
	case e.Class == uievent.ClassAboutToWait:
		if p.onAboutToWait != nil {
			p.onAboutToWait()
		}
	default:
		if p.handler != nil {
			p.handler(e)
		}
	}
	return captured
}

func (p *Pump) raise() {
	if p.interrupter == nil {
		return
	}
	if err := p.interrupter.Interrupt(); err != nil {
		p.failure("interrupt", err)
	}
}

func (p *Pump) failure(op string, err error) {
	if !p.limiter.Allow(diag.CategoryPump, op) {
		return
	}
	logger := p.logger
	if logger == nil {
		logger = diag.L()
	}
	logger.Err().
		Str("op", op).
		Str("backend", p.toolkit.Backend().Name).
		Err(err).
		Log("pump: event delivery failed")
}
