//go:build unix

package readiness

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// ErrInterrupted is returned by SelectInterruptible when the interrupt Token
// fired. It matches unix.EINTR via errors.Is.
var ErrInterrupted = fmt.Errorf("readiness: interrupted: %w", unix.EINTR)

// Token is a one-shot cancellation signal that pollers can wait on, as a
// readable descriptor. Fire is idempotent until Reset.
//
// Every wait gets its own Token, which is what prevents a cancelled waiter
// from leaking its outcome into a later call.
type Token struct {
	mu     sync.Mutex
	rfd    int
	wfd    int
	fired  bool
	closed bool
}

// NewToken allocates the descriptor(s) backing a Token.
func NewToken() (*Token, error) {
	rfd, wfd, err := createWakeFd()
	if err != nil {
		return nil, err
	}
	return &Token{rfd: rfd, wfd: wfd}, nil
}

// Fd is the descriptor that becomes readable once the token fires.
func (t *Token) Fd() int {
	return t.rfd
}

// Fire signals the token. Safe to call from any goroutine, any number of
// times.
func (t *Token) Fire() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTokenClosed
	}
	if t.fired {
		return nil
	}
	if err := writeWakeFd(t.wfd); err != nil {
		return err
	}
	t.fired = true
	return nil
}

// Fired reports whether Fire has been called since the last Reset.
func (t *Token) Fired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}

// Reset drains the descriptor, re-arming the token.
func (t *Token) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	var buf [8]byte
	for {
		if _, err := unix.Read(t.rfd, buf[:]); err != nil {
			break
		}
	}
	t.fired = false
}

// Close releases the descriptor(s). Further Fire calls fail.
func (t *Token) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	err := unix.Close(t.rfd)
	if t.wfd != t.rfd {
		if err2 := unix.Close(t.wfd); err == nil {
			err = err2
		}
	}
	return err
}
