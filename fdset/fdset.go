// Package fdset models the descriptor sets passed to a pselect-style call.
//
// A [Set] is caller-owned and mutated in place: on input it holds the
// descriptors to watch, on output only those that are ready. A [Watch] is an
// immutable snapshot of the read and write interest, taken once per call.
package fdset

import (
	"errors"
	"fmt"
	"slices"

	"golang.org/x/sys/unix"
)

// MaxFD is the exclusive upper bound for descriptors held by a [Set].
const MaxFD = unix.FD_SETSIZE

// ErrOutOfRange is returned when a descriptor cannot be stored in a [Set].
var ErrOutOfRange = errors.New("fdset: descriptor out of range")

// Set is a fixed-capacity descriptor set, layout compatible with fd_set.
//
// The zero value is an empty set. Methods that only read accept a nil
// receiver, which behaves like an empty set (the NULL fd_set of pselect).
type Set struct {
	fds unix.FdSet
}

// Of returns a new Set containing fds. It panics if any fd is out of range.
func Of(fds ...int) *Set {
	var s Set
	for _, fd := range fds {
		if err := s.Add(fd); err != nil {
			panic(err)
		}
	}
	return &s
}

// FromFdSet copies a raw fd_set.
func FromFdSet(fds *unix.FdSet) *Set {
	var s Set
	if fds != nil {
		s.fds = *fds
	}
	return &s
}

// Add inserts fd into the set.
func (s *Set) Add(fd int) error {
	if fd < 0 || fd >= MaxFD {
		return fmt.Errorf("%w: %d", ErrOutOfRange, fd)
	}
	s.fds.Set(fd)
	return nil
}

// Remove deletes fd from the set, ignoring out of range values.
func (s *Set) Remove(fd int) {
	if s == nil || fd < 0 || fd >= MaxFD {
		return
	}
	s.fds.Clear(fd)
}

// Has reports whether fd is a member.
func (s *Set) Has(fd int) bool {
	if s == nil || fd < 0 || fd >= MaxFD {
		return false
	}
	return s.fds.IsSet(fd)
}

// Zero removes every member.
func (s *Set) Zero() {
	if s == nil {
		return
	}
	s.fds.Zero()
}

// Members returns the members below nfds, in ascending order.
// A negative or oversized nfds is treated as MaxFD.
func (s *Set) Members(nfds int) []int {
	if s == nil {
		return nil
	}
	if nfds < 0 || nfds > MaxFD {
		nfds = MaxFD
	}
	var out []int
	for fd := 0; fd < nfds; fd++ {
		if s.fds.IsSet(fd) {
			out = append(out, fd)
		}
	}
	return out
}

// Len counts the members below nfds.
func (s *Set) Len(nfds int) int {
	return len(s.Members(nfds))
}

// Reset replaces the contents of the set with fds, skipping out of range
// values.
func (s *Set) Reset(fds []int) {
	if s == nil {
		return
	}
	s.fds.Zero()
	for _, fd := range fds {
		if fd >= 0 && fd < MaxFD {
			s.fds.Set(fd)
		}
	}
}

// FdSet exposes the underlying fd_set, for use with unix.Select and
// unix.Pselect. It returns nil for a nil receiver.
func (s *Set) FdSet() *unix.FdSet {
	if s == nil {
		return nil
	}
	return &s.fds
}

// String implements fmt.Stringer.
func (s *Set) String() string {
	return fmt.Sprint(s.Members(MaxFD))
}

// Watch is an immutable snapshot of the read and write interest of one call.
// Both slices are sorted and free of duplicates.
type Watch struct {
	Read  []int
	Write []int
}

// Snapshot captures the members of read and write below nfds.
// Either set may be nil.
func Snapshot(nfds int, read, write *Set) Watch {
	return Watch{
		Read:  read.Members(nfds),
		Write: write.Members(nfds),
	}
}

// NewWatch builds a Watch from unsorted descriptor lists, as used by tests
// and non-fd_set callers. Negative values are dropped.
func NewWatch(read, write []int) Watch {
	return Watch{Read: normalize(read), Write: normalize(write)}
}

// Empty reports whether there is nothing to watch.
func (w Watch) Empty() bool {
	return len(w.Read) == 0 && len(w.Write) == 0
}

// Len is the number of (descriptor, direction) pairs.
func (w Watch) Len() int {
	return len(w.Read) + len(w.Write)
}

// Interest is the direction(s) a descriptor is watched for.
type Interest uint8

const (
	// Readable marks interest in the descriptor becoming readable.
	Readable Interest = 1 << iota
	// Writable marks interest in the descriptor becoming writable.
	Writable
)

// Interests merges the read and write lists into one entry per descriptor,
// which is what pollers that reject duplicate registrations (epoll) need.
func (w Watch) Interests() map[int]Interest {
	m := make(map[int]Interest, w.Len())
	for _, fd := range w.Read {
		m[fd] |= Readable
	}
	for _, fd := range w.Write {
		m[fd] |= Writable
	}
	return m
}

// Without returns a copy of w with fds removed from both directions.
func (w Watch) Without(fds ...int) Watch {
	if len(fds) == 0 {
		return w
	}
	keep := func(in []int) []int {
		var out []int
		for _, fd := range in {
			if !slices.Contains(fds, fd) {
				out = append(out, fd)
			}
		}
		return out
	}
	return Watch{Read: keep(w.Read), Write: keep(w.Write)}
}

func normalize(fds []int) []int {
	var out []int
	for _, fd := range fds {
		if fd >= 0 {
			out = append(out, fd)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
