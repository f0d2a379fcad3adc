//go:build linux

package readiness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joeycumines/go-uiselect/fdset"
	"golang.org/x/sys/unix"
)

// SelectWaiter blocks in a single pselect(2) covering every descriptor and
// the cancellation Token. It is the plain blocking strategy: no workers, no
// per-call kernel objects other than the token.
type SelectWaiter struct {
	report reporter
}

func newSelectWaiter(cfg *waiterOptions) (Waiter, error) {
	return &SelectWaiter{report: cfg.reporter()}, nil
}

// Wait implements Waiter.
func (x *SelectWaiter) Wait(ctx context.Context, watch fdset.Watch) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	token, err := NewToken()
	if err != nil {
		return Outcome{}, &StartError{Op: "eventfd", Err: err}
	}
	defer token.Close()
	if token.Fd() >= fdset.MaxFD {
		return Outcome{}, &StartError{Op: "eventfd", Err: fdset.ErrOutOfRange}
	}

	stop := context.AfterFunc(ctx, func() { _ = token.Fire() })
	defer stop()

	watch = x.excludeInvalid(watch)
	for {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}

		read := fdset.Of(watch.Read...)
		write := fdset.Of(watch.Write...)
		_ = read.Add(token.Fd())

		_, err := unix.Pselect(nfds(watch, token.Fd()), read.FdSet(), write.FdSet(), nil, nil, nil)
		if err != nil {
			switch {
			case err == unix.EINTR:
				continue
			case err == unix.EBADF:
				// a descriptor was closed under us, find it and carry on
				watch = x.excludeInvalid(watch)
				continue
			default:
				return Outcome{}, fmt.Errorf("readiness: pselect: %w", err)
			}
		}

		if read.Has(token.Fd()) || ctx.Err() != nil {
			return Outcome{}, canceledErr(ctx)
		}

		read.Remove(token.Fd())
		out := Outcome{
			Read:  read.Members(fdset.MaxFD),
			Write: write.Members(fdset.MaxFD),
		}
		if !out.Empty() {
			return out, nil
		}
	}
}

// excludeInvalid drops descriptors that are closed or beyond the fd_set
// capacity, reporting each.
func (x *SelectWaiter) excludeInvalid(watch fdset.Watch) fdset.Watch {
	watch, excluded := Validate(watch)
	for _, err := range excluded {
		x.report.registration(StrategySelect, err.FD, err.Interest, err.Err)
	}
	return watch
}

// Validate splits watch into the descriptors pselect(2) can accept, and
// those it cannot (closed, or not representable in an fd_set).
func Validate(watch fdset.Watch) (fdset.Watch, []*RegistrationError) {
	var (
		bad      []int
		excluded []*RegistrationError
	)
	fds, interests := sortedInterests(watch)
	for _, fd := range fds {
		var err error
		if fd >= fdset.MaxFD {
			err = fdset.ErrOutOfRange
		} else if _, e := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0); e != nil {
			err = e
		}
		if err != nil {
			bad = append(bad, fd)
			excluded = append(excluded, &RegistrationError{FD: fd, Interest: interests[fd], Err: err})
		}
	}
	return watch.Without(bad...), excluded
}

func nfds(watch fdset.Watch, extra int) int {
	n := extra
	for _, fd := range watch.Read {
		n = max(n, fd)
	}
	for _, fd := range watch.Write {
		n = max(n, fd)
	}
	return n + 1
}

// SelectInterruptible is a pselect(2) over read and write, bounded by
// timeout, that also returns early (with ErrInterrupted, sets cleared) if
// any of the interrupt tokens fires. read and write are rewritten in place,
// as pselect does. A negative timeout blocks indefinitely. Tokens that fired
// are reset before returning ErrInterrupted.
func SelectInterruptible(nfd int, read, write *fdset.Set, timeout time.Duration, interrupt ...*Token) (int, error) {
	if read == nil {
		read = new(fdset.Set)
	}
	if write == nil {
		write = new(fdset.Set)
	}

	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}

	origRead, origWrite := *read, *write
	for {
		*read, *write = origRead, origWrite

		n := nfd
		for _, token := range interrupt {
			if token == nil {
				continue
			}
			if err := read.Add(token.Fd()); err != nil {
				return -1, &StartError{Op: "interrupt fd", Err: err}
			}
			n = max(n, token.Fd()+1)
		}

		var ts *unix.Timespec
		if !deadline.IsZero() {
			v := unix.NsecToTimespec(int64(max(time.Until(deadline), 0)))
			ts = &v
		}

		count, err := unix.Pselect(n, read.FdSet(), write.FdSet(), nil, ts, nil)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			read.Zero()
			write.Zero()
			return -1, err
		}

		var fired bool
		for _, token := range interrupt {
			if token != nil && read.Has(token.Fd()) {
				token.Reset()
				fired = true
			}
		}
		if fired {
			read.Zero()
			write.Zero()
			return -1, ErrInterrupted
		}
		return count, nil
	}
}
