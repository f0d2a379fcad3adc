// Package readiness waits for descriptor readiness on behalf of the
// multiplexer, off the main thread.
//
// A [Waiter] registers a "readable" wait for every read-interest descriptor
// and a "writable" wait for every write-interest descriptor, then blocks
// until at least one fires. Everything ready at that instant is reported
// together, in one [Outcome]. Cancellation is observed at every poll
// iteration via an eventfd backed [Token], so a cancelled waiter never
// delivers a result.
//
// A descriptor that cannot be registered is logged and excluded; it never
// fails the whole wait.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/joeycumines/go-uiselect/diag"
	"github.com/joeycumines/go-uiselect/fdset"
)

// Standard errors.
var (
	// ErrUnsupported is returned for strategies unavailable on this platform.
	ErrUnsupported = errors.New("readiness: strategy not supported on this platform")

	// ErrPoolExhausted marks a descriptor skipped because every worker was busy.
	ErrPoolExhausted = errors.New("readiness: worker pool exhausted")

	// ErrTokenClosed is returned when signalling a closed Token.
	ErrTokenClosed = errors.New("readiness: token closed")
)

// Waiter is a readiness strategy. Implementations must be safe for use by
// one Wait call at a time per call site; they hold no state across calls.
type Waiter interface {
	// Wait blocks until at least one descriptor of watch is ready, returning
	// everything ready at that instant, or until ctx is done, returning an
	// empty Outcome and ctx.Err(). A *StartError means the waiter could not
	// be set up at all.
	Wait(ctx context.Context, watch fdset.Watch) (Outcome, error)
}

// Outcome is the set of descriptors observed ready, per direction.
// Both slices are sorted and free of duplicates.
type Outcome struct {
	Read  []int
	Write []int
}

// Len is the number of ready (descriptor, direction) pairs, which is what
// select returns.
func (o Outcome) Len() int {
	return len(o.Read) + len(o.Write)
}

// Empty reports whether nothing is ready.
func (o Outcome) Empty() bool {
	return o.Len() == 0
}

// Descriptors lists every descriptor in the outcome, once.
func (o Outcome) Descriptors() []int {
	out := append(slices.Clone(o.Read), o.Write...)
	slices.Sort(out)
	return slices.Compact(out)
}

// Merge combines two outcomes.
func (o Outcome) Merge(other Outcome) Outcome {
	r := Outcome{
		Read:  append(slices.Clone(o.Read), other.Read...),
		Write: append(slices.Clone(o.Write), other.Write...),
	}
	r.normalize()
	return r
}

// add records the directions of interest that are ready.
func (o *Outcome) add(fd int, interest, ready fdset.Interest) {
	ready &= interest
	if ready&fdset.Readable != 0 {
		o.Read = append(o.Read, fd)
	}
	if ready&fdset.Writable != 0 {
		o.Write = append(o.Write, fd)
	}
}

func (o *Outcome) normalize() {
	slices.Sort(o.Read)
	o.Read = slices.Compact(o.Read)
	slices.Sort(o.Write)
	o.Write = slices.Compact(o.Write)
}

// StartError means a waiter could not be set up, e.g. because the process
// ran out of descriptors for its epoll instance or cancellation eventfd.
type StartError struct {
	Err error
	Op  string
}

// Error implements the error interface.
func (e *StartError) Error() string {
	return fmt.Sprintf("readiness: cannot start waiter: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *StartError) Unwrap() error {
	return e.Err
}

// RegistrationError describes one descriptor excluded from a wait.
type RegistrationError struct {
	Err      error
	FD       int
	Interest fdset.Interest
}

// Error implements the error interface.
func (e *RegistrationError) Error() string {
	return fmt.Sprintf("readiness: cannot watch fd %d: %v", e.FD, e.Err)
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// reporter logs excluded descriptors, rate limited per descriptor.
type reporter struct {
	logger  *diag.Logger
	limiter *diag.Limiter
	onError func(*RegistrationError)
}

func (x *reporter) registration(strategy Strategy, fd int, interest fdset.Interest, err error) {
	regErr := &RegistrationError{FD: fd, Interest: interest, Err: err}
	if x.onError != nil {
		x.onError(regErr)
	}
	if !x.limiter.Allow(diag.CategoryRegistration, fd) {
		return
	}
	logger := x.logger
	if logger == nil {
		logger = diag.L()
	}
	logger.Warning().
		Str("strategy", strategy.String()).
		Int("fd", fd).
		Bool("read", interest&fdset.Readable != 0).
		Bool("write", interest&fdset.Writable != 0).
		Err(err).
		Log("readiness: descriptor excluded from wait")
}

// sortedInterests returns the merged interests in descriptor order, so that
// registration (and any resulting diagnostics) is deterministic.
func sortedInterests(watch fdset.Watch) ([]int, map[int]fdset.Interest) {
	interests := watch.Interests()
	fds := make([]int, 0, len(interests))
	for fd := range interests {
		fds = append(fds, fd)
	}
	slices.Sort(fds)
	return fds, interests
}

// canceledErr returns ctx.Err(), or context.Canceled if the token fired
// first.
func canceledErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return context.Canceled
}
