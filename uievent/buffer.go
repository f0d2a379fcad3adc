package uievent

import (
	"sync"

	"github.com/eapache/queue"
)

// Buffer is an ordered, append-only store of captured events.
//
// Events are appended by the UI pump (main thread) and drained by the host.
// A single mutex guards the queue, and is only ever held for the duration of
// an append or a drain, never while waiting on anything else.
type Buffer struct {
	mu  sync.Mutex
	q   *queue.Queue
	seq uint64
}

// NewBuffer returns an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{q: queue.New()}
}

// Append adds e to the end of the buffer, assigning its sequence number, and
// returns the stored event.
func (b *Buffer) Append(e Event) Event {
	b.mu.Lock()
	b.seq++
	e.Seq = b.seq
	b.q.Add(e)
	b.mu.Unlock()
	return e
}

// Drain removes and returns every buffered event, in arrival order. It returns
// nil if the buffer is empty.
func (b *Buffer) Drain() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.drainLocked()
}

// TryDrain is like Drain, but gives up immediately if the buffer is
// contended, returning false.
func (b *Buffer) TryDrain() ([]Event, bool) {
	if !b.mu.TryLock() {
		return nil, false
	}
	defer b.mu.Unlock()
	return b.drainLocked(), true
}

// Len returns the number of buffered events.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.q.Length()
}

func (b *Buffer) drainLocked() []Event {
	n := b.q.Length()
	if n == 0 {
		return nil
	}
	events := make([]Event, 0, n)
	for b.q.Length() > 0 {
		events = append(events, b.q.Remove().(Event))
	}
	return events
}

var global = NewBuffer()

// Global returns the process-wide buffer.
func Global() *Buffer { return global }

// Drain drains the process-wide buffer. Consuming empties it, so a second
// call with no intervening pump activity returns nil.
func Drain() []Event { return global.Drain() }

// TryDrain is the non-blocking form of [Drain].
func TryDrain() ([]Event, bool) { return global.TryDrain() }
