//go:build unix

package mux

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/joeycumines/go-uiselect/diag"
	"github.com/joeycumines/go-uiselect/fdset"
	"github.com/joeycumines/go-uiselect/pump"
	"github.com/joeycumines/go-uiselect/readiness"
	"github.com/joeycumines/go-uiselect/uievent"
)

// Standard errors.
var (
	// ErrInterrupted is returned by Select for an Interrupted outcome. It
	// matches unix.EINTR via errors.Is, so hosts treat it like a signal.
	ErrInterrupted = readiness.ErrInterrupted

	// ErrUnsupported is returned for configurations unavailable on this
	// platform.
	ErrUnsupported = readiness.ErrUnsupported
)

// Kind is the tri-state outcome of one call.
type Kind int

const (
	// TimedOut means the deadline elapsed with nothing ready.
	TimedOut Kind = iota
	// ReadinessArrived means at least one descriptor is ready.
	ReadinessArrived
	// Interrupted means an event was captured, or Interrupt was called.
	Interrupted
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case TimedOut:
		return "TimedOut"
	case ReadinessArrived:
		return "ReadinessArrived"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown"
	}
}

// Outcome is the result of [Multiplexer.Multiplex]. Ready is only
// populated for ReadinessArrived.
type Outcome struct {
	Ready readiness.Outcome
	Kind  Kind
}

// Count is the pselect return value: ready (descriptor, direction) pairs,
// or -1 when interrupted.
func (o Outcome) Count() int {
	if o.Kind == Interrupted {
		return -1
	}
	return o.Ready.Len()
}

// Multiplexer is the pselect replacement. Create it on the main thread.
type Multiplexer struct {
	pump        *pump.Pump
	waiter      readiness.Waiter
	interrupter *pump.Interrupter
	buffer      *uievent.Buffer
	logger      *diag.Logger
	limiter     *diag.Limiter
	metrics     *Metrics
	state       fastState
	slice       time.Duration
	inline      bool
}

// New builds a Multiplexer. With a toolkit, the calling goroutine becomes
// the pump's thread, see [pump.New].
func New(opts ...Option) (*Multiplexer, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	waiter, err := readiness.New(cfg.strategy,
		readiness.WithLogger(cfg.logger),
		readiness.WithLimiter(cfg.limiter),
		readiness.WithWorkers(cfg.workers),
	)
	if err != nil {
		return nil, err
	}

	interrupter, err := pump.NewInterrupter(cfg.signal)
	if err != nil {
		return nil, err
	}

	m := &Multiplexer{
		waiter:      waiter,
		interrupter: interrupter,
		buffer:      cfg.buffer,
		logger:      cfg.logger,
		limiter:     cfg.limiter,
		slice:       cfg.slice,
		inline:      cfg.inline,
	}
	if cfg.metrics {
		m.metrics = &Metrics{}
	}
	if m.inline && !inlineSupported {
		_ = interrupter.Close()
		return nil, ErrUnsupported
	}

	if cfg.toolkit != nil {
		m.pump, err = pump.New(cfg.toolkit,
			pump.WithBuffer(cfg.buffer),
			pump.WithInterrupter(interrupter),
			pump.WithHandler(cfg.handler),
			pump.WithOnAboutToWait(cfg.onAboutToWait),
			pump.WithSlice(cfg.slice),
			pump.WithLogger(cfg.logger),
			pump.WithLimiter(cfg.limiter),
		)
		if err != nil {
			_ = interrupter.Close()
			return nil, err
		}
	}

	return m, nil
}

// Pump returns the pump, nil without a toolkit.
func (m *Multiplexer) Pump() *pump.Pump {
	return m.pump
}

// Buffer returns the Event Buffer captured events are appended to.
func (m *Multiplexer) Buffer() *uievent.Buffer {
	return m.buffer
}

// State returns the race state.
func (m *Multiplexer) State() State {
	return m.state.Load()
}

// Metrics returns a snapshot, or nil if metrics are disabled.
func (m *Multiplexer) Metrics() *Snapshot {
	if m.metrics == nil {
		return nil
	}
	s := m.metrics.Snapshot()
	return &s
}

// Interrupt makes every call in progress return Interrupted, including
// calls blocked in the legacy path. Calls that start after Interrupt
// returns are unaffected. Safe from any goroutine.
func (m *Multiplexer) Interrupt() {
	if err := m.interrupter.Interrupt(); err != nil {
		m.warn(diag.CategoryPump, "interrupt", err)
	}
	if m.pump != nil {
		m.pump.Wakeup()
	}
}

// Close releases the multiplexer's descriptors and, if called on the main
// thread, its thread lock.
func (m *Multiplexer) Close() error {
	var err error
	if m.pump != nil && m.pump.OnMainThread() {
		err = m.pump.Close()
	}
	return errors.Join(err, m.interrupter.Close())
}

// Select is the pselect-compatible entry point. read and write hold the
// descriptors below nfds to watch, and are rewritten to hold only the ready
// ones (both cleared unless ReadinessArrived). A negative timeout blocks
// until readiness or an event. Interrupted calls return -1 and
// ErrInterrupted.
func (m *Multiplexer) Select(nfds int, read, write *fdset.Set, timeout time.Duration) (int, error) {
	out, err := m.Multiplex(context.Background(), fdset.Snapshot(nfds, read, write), timeout)
	if err == nil && out.Kind == Interrupted {
		err = ErrInterrupted
	}
	if err != nil {
		read.Zero()
		write.Zero()
		return -1, err
	}
	read.Reset(out.Ready.Read)
	write.Reset(out.Ready.Write)
	return out.Count(), nil
}

// Multiplex waits for readiness of watch, an interrupting event, or the
// timeout, whichever comes first. Calls from the pump's thread race the
// pump. Other calls, and calls while a race is in progress, use the legacy
// path: a pselect that the pump interrupts when it captures an event.
func (m *Multiplexer) Multiplex(ctx context.Context, watch fdset.Watch, timeout time.Duration) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	start := time.Now()
	deadline := newDeadline(start, timeout)
	// interrupts (and captures) before this point belong to earlier calls
	since := m.interrupter.Generation()

	var (
		out  Outcome
		err  error
		path string
	)
	if m.pump != nil && m.pump.OnMainThread() && m.state.TryTransition(StateIdle, StateRacing) {
		if m.inline {
			path = "inline"
			out, err = m.raceInline(ctx, watch, deadline, since)
		} else {
			path = "race"
			out, err = m.race(ctx, watch, deadline, since)
		}
		m.state.TryTransition(StateRacing, StateIdle)
	} else {
		path = "legacy"
		if m.metrics != nil {
			m.metrics.legacy.Add(1)
		}
		out, err = m.legacy(ctx, watch, deadline, since)
	}

	elapsed := time.Since(start)
	if m.metrics != nil && err == nil {
		m.metrics.record(out.Kind, elapsed)
		if out.Kind == Interrupted {
			m.metrics.Buffer.Update(m.buffer.Len())
		}
	}
	if b := m.log().Debug(); b != nil {
		b.Str("call", uuid.NewString()).
			Str("path", path).
			Str("outcome", out.Kind.String()).
			Int("ready", out.Ready.Len()).
			Int("watched", watch.Len()).
			Dur("timeout", timeout).
			Dur("elapsed", elapsed).
			Err(err).
			Log("mux: call complete")
	}
	return out, err
}

type waitResult struct {
	err error
	out readiness.Outcome
}

// race runs the background waiter against the pump.
func (m *Multiplexer) race(ctx context.Context, watch fdset.Watch, deadline Deadline, since uint64) (Outcome, error) {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// per call, so a cancelled waiter can never deliver into a later call
	var ready atomic.Bool
	results := make(chan waitResult, 1)
	if !watch.Empty() {
		go func() {
			out, err := m.waiter.Wait(waitCtx, watch)
			if err != nil {
				if waitCtx.Err() != nil {
					return
				}
				m.degrade(err)
			}
			results <- waitResult{out: out, err: err}
			if err == nil {
				// after the send, so a stopped pump always finds the result
				ready.Store(true)
				m.pump.Wakeup()
			}
		}()
	}

	stop := context.AfterFunc(ctx, m.pump.Wakeup)
	defer stop()

	res, err := m.pump.Run(deadline.Time(), func() bool {
		return ready.Load() || ctx.Err() != nil || m.interrupter.Since(since)
	})
	if err != nil {
		return Outcome{}, err
	}

	switch res.Reason {
	case pump.ReasonEvent, pump.ReasonInterrupted:
		return Outcome{Kind: Interrupted}, nil
	}
	if m.interrupter.Since(since) {
		return Outcome{Kind: Interrupted}, nil
	}
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	select {
	case r := <-results:
		if r.err == nil {
			return Outcome{Kind: ReadinessArrived, Ready: r.out}, nil
		}
	default:
	}

	cancel()
	return m.finalProbe(watch), nil
}

// finalProbe catches readiness that landed at the instant of the timeout.
func (m *Multiplexer) finalProbe(watch fdset.Watch) Outcome {
	if watch.Empty() {
		return Outcome{Kind: TimedOut}
	}
	out, err := readiness.Probe(watch)
	if err != nil {
		m.warn(diag.CategoryRegistration, "probe", err)
		return Outcome{Kind: TimedOut}
	}
	if out.Empty() {
		return Outcome{Kind: TimedOut}
	}
	if m.metrics != nil {
		m.metrics.probeHits.Add(1)
	}
	return Outcome{Kind: ReadinessArrived, Ready: out}
}

// degrade records a waiter that failed, leaving the race to the pump and
// the deadline.
func (m *Multiplexer) degrade(err error) {
	if m.metrics != nil {
		m.metrics.degraded.Add(1)
	}
	op := "wait"
	var startErr *readiness.StartError
	if errors.As(err, &startErr) {
		op = startErr.Op
	}
	m.warn(diag.CategoryWaiterStart, op, err)
}

func (m *Multiplexer) warn(category diag.Category, op string, err error) {
	if !m.limiter.Allow(category, op) {
		return
	}
	m.log().Warning().
		Str("category", string(category)).
		Str("op", op).
		Err(err).
		Log("mux: " + op + " failed")
}

func (m *Multiplexer) log() *diag.Logger {
	if m.logger != nil {
		return m.logger
	}
	return diag.L()
}
