//go:build linux

package mux

import (
	"context"
	"errors"
	"time"

	"github.com/joeycumines/go-uiselect/diag"
	"github.com/joeycumines/go-uiselect/fdset"
	"github.com/joeycumines/go-uiselect/readiness"
	"golang.org/x/sys/unix"
)

const inlineSupported = true

// legacy is a plain pselect, which the pump (or Interrupt) cuts short via
// the interrupter token. The token only wakes the call: it is interrupted
// if the generation moved past since.
func (m *Multiplexer) legacy(ctx context.Context, watch fdset.Watch, deadline Deadline, since uint64) (Outcome, error) {
	cancelToken, stop, err := m.cancelToken(ctx)
	if err != nil {
		return Outcome{}, err
	}
	defer stop()

	watch = m.validate(watch)
	for {
		if m.interrupter.Since(since) {
			return Outcome{Kind: Interrupted}, nil
		}
		read, write := fdset.Of(watch.Read...), fdset.Of(watch.Write...)
		n, err := readiness.SelectInterruptible(maxFd(watch)+1, read, write, deadline.Timeout(),
			m.interrupter.Token(), cancelToken)
		switch {
		case errors.Is(err, readiness.ErrInterrupted):
			if err := ctx.Err(); err != nil {
				return Outcome{}, err
			}
			// a stale wake from an earlier call fails the generation check
			continue
		case errors.Is(err, unix.EBADF):
			watch = m.validate(watch)
			continue
		case err != nil:
			return Outcome{}, err
		case n == 0:
			return Outcome{Kind: TimedOut}, nil
		}
		return Outcome{Kind: ReadinessArrived, Ready: readiness.Outcome{
			Read:  read.Members(fdset.MaxFD),
			Write: write.Members(fdset.MaxFD),
		}}, nil
	}
}

// raceInline interleaves pump passes with a pselect over watch, the
// toolkit's connection, and the interrupter, all on the calling thread.
func (m *Multiplexer) raceInline(ctx context.Context, watch fdset.Watch, deadline Deadline, since uint64) (Outcome, error) {
	cancelToken, stop, err := m.cancelToken(ctx)
	if err != nil {
		return Outcome{}, err
	}
	defer stop()

	conn := m.pump.Toolkit().Backend().Fd
	watch = m.validate(watch)
	for {
		// a zero-timeout pass first, so queued events win ties
		n, err := m.pump.Pass(0)
		if err != nil {
			return Outcome{}, err
		}
		if n > 0 || m.interrupter.Since(since) {
			return Outcome{Kind: Interrupted}, nil
		}
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		if deadline.Expired() {
			return m.finalProbe(watch), nil
		}

		read, write := fdset.Of(watch.Read...), fdset.Of(watch.Write...)
		nfds := maxFd(watch) + 1
		if conn >= 0 && conn < fdset.MaxFD {
			_ = read.Add(conn)
			nfds = max(nfds, conn+1)
		}
		slice := min(deadline.Remaining(), m.sliceFor(conn))
		count, err := readiness.SelectInterruptible(nfds, read, write, slice, m.interrupter.Token(), cancelToken)
		switch {
		case errors.Is(err, readiness.ErrInterrupted):
			// a capture, Interrupt, or ctx, all checked at the top
			continue
		case errors.Is(err, unix.EBADF):
			watch = m.validate(watch)
			continue
		case err != nil:
			return Outcome{}, err
		case count == 0:
			continue
		}

		connReady := conn >= 0 && read.Has(conn)
		read.Remove(conn)
		ready := readiness.Outcome{
			Read:  read.Members(fdset.MaxFD),
			Write: write.Members(fdset.MaxFD),
		}
		if connReady || !ready.Empty() {
			// one more pass: UI events beat readiness seen in the same instant
			if n, err := m.pump.Pass(0); err != nil {
				return Outcome{}, err
			} else if n > 0 {
				return Outcome{Kind: Interrupted}, nil
			}
		}
		if !ready.Empty() {
			return Outcome{Kind: ReadinessArrived, Ready: ready}, nil
		}
	}
}

// sliceFor bounds a single inline pselect. Without a connection descriptor
// the toolkit can only be serviced between slices.
func (m *Multiplexer) sliceFor(conn int) time.Duration {
	if conn < 0 {
		return time.Millisecond
	}
	return m.slice
}

// validate excludes descriptors pselect would reject.
func (m *Multiplexer) validate(watch fdset.Watch) fdset.Watch {
	watch, excluded := readiness.Validate(watch)
	for _, err := range excluded {
		m.warn(diag.CategoryRegistration, "validate", err)
	}
	return watch
}

// cancelToken returns a token fired when ctx is done, or nil if ctx can
// never be cancelled.
func (m *Multiplexer) cancelToken(ctx context.Context) (*readiness.Token, func(), error) {
	if ctx.Done() == nil {
		return nil, func() {}, nil
	}
	token, err := readiness.NewToken()
	if err != nil {
		return nil, nil, &readiness.StartError{Op: "eventfd", Err: err}
	}
	stop := context.AfterFunc(ctx, func() { _ = token.Fire() })
	return token, func() {
		stop()
		_ = token.Close()
	}, nil
}

func maxFd(watch fdset.Watch) int {
	n := -1
	if len(watch.Read) != 0 {
		n = max(n, watch.Read[len(watch.Read)-1])
	}
	if len(watch.Write) != 0 {
		n = max(n, watch.Write[len(watch.Write)-1])
	}
	return n
}
