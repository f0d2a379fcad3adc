//go:build linux

package readiness

import (
	"context"
	"fmt"

	"github.com/joeycumines/go-uiselect/fdset"
	"golang.org/x/sys/unix"
)

// EpollWaiter waits using a private epoll instance per call, plus the
// call's cancellation Token. One epoll_wait returns every descriptor ready
// at that instant, which gives batch collection for free.
type EpollWaiter struct {
	report reporter
}

func newEpollWaiter(cfg *waiterOptions) (Waiter, error) {
	return &EpollWaiter{report: cfg.reporter()}, nil
}

// Wait implements Waiter.
func (x *EpollWaiter) Wait(ctx context.Context, watch fdset.Watch) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return Outcome{}, &StartError{Op: "epoll_create1", Err: err}
	}
	defer unix.Close(epfd)

	token, err := NewToken()
	if err != nil {
		return Outcome{}, &StartError{Op: "eventfd", Err: err}
	}
	defer token.Close()

	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, token.Fd(), &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(token.Fd()),
	}); err != nil {
		return Outcome{}, &StartError{Op: "epoll_ctl", Err: err}
	}

	stop := context.AfterFunc(ctx, func() { _ = token.Fire() })
	defer stop()

	fds, interests := sortedInterests(watch)
	for _, fd := range fds {
		in := interests[fd]
		err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
			Events: interestToEpoll(in),
			Fd:     int32(fd),
		})
		if err != nil {
			x.report.registration(StrategyEpoll, fd, in, err)
			delete(interests, fd)
		}
	}

	events := make([]unix.EpollEvent, len(interests)+1)
	for {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}

		n, err := unix.EpollWait(epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return Outcome{}, fmt.Errorf("readiness: epoll_wait: %w", err)
		}

		var (
			out      Outcome
			canceled bool
		)
		for _, ev := range events[:n] {
			fd := int(ev.Fd)
			if fd == token.Fd() {
				canceled = true
				continue
			}
			out.add(fd, interests[fd], epollToReady(ev.Events))
		}

		// cancellation wins over anything observed in the same batch
		if canceled || ctx.Err() != nil {
			return Outcome{}, canceledErr(ctx)
		}

		if !out.Empty() {
			out.normalize()
			return out, nil
		}
	}
}

func interestToEpoll(in fdset.Interest) uint32 {
	var events uint32
	if in&fdset.Readable != 0 {
		events |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if in&fdset.Writable != 0 {
		events |= unix.EPOLLOUT
	}
	return events
}

// epollToReady maps epoll flags to select semantics: hangup and error
// conditions make a descriptor readable, errors also make it writable.
func epollToReady(events uint32) fdset.Interest {
	var ready fdset.Interest
	if events&(unix.EPOLLIN|unix.EPOLLRDHUP|unix.EPOLLHUP|unix.EPOLLERR) != 0 {
		ready |= fdset.Readable
	}
	if events&(unix.EPOLLOUT|unix.EPOLLERR) != 0 {
		ready |= fdset.Writable
	}
	return ready
}
