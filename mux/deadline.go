package mux

import (
	"time"
)

// forever stands in for an infinite deadline where a concrete instant is
// required.
const forever = 100 * 365 * 24 * time.Hour

// Deadline is the absolute instant a call gives up, derived once from the
// caller's relative timeout. The zero value has already expired.
type Deadline struct {
	at       time.Time
	infinite bool
}

// NewDeadline converts a relative timeout. A negative timeout never
// expires, matching a NULL timeout to pselect.
func NewDeadline(timeout time.Duration) Deadline {
	return newDeadline(time.Now(), timeout)
}

func newDeadline(now time.Time, timeout time.Duration) Deadline {
	if timeout < 0 {
		return Deadline{at: now.Add(forever), infinite: true}
	}
	return Deadline{at: now.Add(timeout)}
}

// Time is the deadline instant, far in the future when infinite.
func (d Deadline) Time() time.Time {
	return d.at
}

// Infinite reports whether the deadline never expires.
func (d Deadline) Infinite() bool {
	return d.infinite
}

// Remaining is the time left, never negative.
func (d Deadline) Remaining() time.Duration {
	return max(time.Until(d.at), 0)
}

// Expired reports whether the deadline has passed.
func (d Deadline) Expired() bool {
	return !d.infinite && !time.Now().Before(d.at)
}

// Timeout is Remaining as a pselect style relative timeout, negative when
// infinite.
func (d Deadline) Timeout() time.Duration {
	if d.infinite {
		return -1
	}
	return d.Remaining()
}
