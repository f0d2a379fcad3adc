//go:build unix

package readiness

import (
	"fmt"
	"time"

	"github.com/joeycumines/go-uiselect/diag"
	"github.com/joeycumines/go-uiselect/fdset"
	"golang.org/x/sys/unix"
)

var probeReporter = reporter{limiter: diag.NewLimiter(diag.DefaultRates)}

// Probe checks watch once, without blocking, returning whatever is ready
// right now. Invalid descriptors are logged and skipped.
func Probe(watch fdset.Watch) (Outcome, error) {
	return probe(watch, probeReporter)
}

// ProbeTimeout is like Probe, but waits up to timeout for the first
// descriptor. A negative timeout is treated as zero.
func ProbeTimeout(watch fdset.Watch, timeout time.Duration) (Outcome, error) {
	return probeTimeout(watch, timeout, probeReporter)
}

func probe(watch fdset.Watch, report reporter) (Outcome, error) {
	return probeTimeout(watch, 0, report)
}

func probeTimeout(watch fdset.Watch, timeout time.Duration, report reporter) (Outcome, error) {
	if watch.Empty() {
		return Outcome{}, nil
	}

	fds, interests := sortedInterests(watch)
	pfds := make([]unix.PollFd, len(fds))
	for i, fd := range fds {
		pfds[i] = unix.PollFd{Fd: int32(fd), Events: interestToPoll(interests[fd])}
	}

	ms := 0
	if timeout > 0 {
		ms = int((timeout + time.Millisecond - 1) / time.Millisecond)
	}

	for {
		_, err := unix.Poll(pfds, ms)
		if err == unix.EINTR {
			// retrying with the full timeout is acceptable for a probe
			continue
		}
		if err != nil {
			return Outcome{}, fmt.Errorf("readiness: poll: %w", err)
		}
		break
	}

	var out Outcome
	for _, p := range pfds {
		fd := int(p.Fd)
		if p.Revents&unix.POLLNVAL != 0 {
			report.registration(StrategyPoll, fd, interests[fd], unix.EBADF)
			continue
		}
		out.add(fd, interests[fd], pollToReady(p.Revents))
	}
	out.normalize()
	return out, nil
}
