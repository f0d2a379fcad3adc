//go:build unix

package readiness

import (
	"context"

	"github.com/joeycumines/go-uiselect/fdset"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// PollWaiter runs one blocking poll(2) per descriptor, on a bounded pool of
// workers, each also watching the call's cancellation Token. The first
// report wakes the collector, which then takes everything reported so far
// and probes the remaining descriptors once, so that descriptors ready in
// the same instant are returned together.
type PollWaiter struct {
	report  reporter
	workers int
}

type fdReady struct {
	fd       int
	interest fdset.Interest
	ready    fdset.Interest
}

// Wait implements Waiter.
func (x *PollWaiter) Wait(ctx context.Context, watch fdset.Watch) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	token, err := NewToken()
	if err != nil {
		return Outcome{}, &StartError{Op: "wake fd", Err: err}
	}

	fds, interests := sortedInterests(watch)
	results := make(chan fdReady, len(fds))

	var g errgroup.Group
	g.SetLimit(x.workers)
	for _, fd := range fds {
		in := interests[fd]
		if !g.TryGo(func() error {
			x.waitOne(token, fd, in, results)
			return nil
		}) {
			x.report.registration(StrategyPoll, fd, in, ErrPoolExhausted)
		}
	}

	stop := context.AfterFunc(ctx, func() { _ = token.Fire() })
	defer func() {
		stop()
		_ = token.Fire()
		_ = g.Wait()
		_ = token.Close()
	}()

	var out Outcome
	if err := receiveBatch(ctx, results, func(r fdReady) {
		out.add(r.fd, r.interest, r.ready)
	}); err != nil {
		return Outcome{}, err
	}

	// workers racing to report the same instant
	if rest := watch.Without(out.Descriptors()...); !rest.Empty() {
		if more, err := probe(rest, x.report); err == nil {
			out = out.Merge(more)
		}
	}
	out.normalize()

	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	return out, nil
}

func (x *PollWaiter) waitOne(token *Token, fd int, in fdset.Interest, results chan<- fdReady) {
	pfds := []unix.PollFd{
		{Fd: int32(fd), Events: interestToPoll(in)},
		{Fd: int32(token.Fd()), Events: unix.POLLIN},
	}
	for {
		_, err := unix.Poll(pfds, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			x.report.registration(StrategyPoll, fd, in, err)
			return
		}
		if pfds[1].Revents != 0 {
			return
		}
		if pfds[0].Revents&unix.POLLNVAL != 0 {
			x.report.registration(StrategyPoll, fd, in, unix.EBADF)
			return
		}
		if ready := pollToReady(pfds[0].Revents) & in; ready != 0 {
			results <- fdReady{fd: fd, interest: in, ready: ready}
			return
		}
	}
}

func interestToPoll(in fdset.Interest) int16 {
	var events int16
	if in&fdset.Readable != 0 {
		events |= unix.POLLIN
	}
	if in&fdset.Writable != 0 {
		events |= unix.POLLOUT
	}
	return events
}

// pollToReady maps poll flags to select semantics, see epollToReady.
func pollToReady(revents int16) fdset.Interest {
	var ready fdset.Interest
	if revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
		ready |= fdset.Readable
	}
	if revents&(unix.POLLOUT|unix.POLLERR) != 0 {
		ready |= fdset.Writable
	}
	return ready
}
