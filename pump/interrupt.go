//go:build unix

package pump

import (
	"sync/atomic"

	"github.com/joeycumines/go-uiselect/readiness"
	"golang.org/x/sys/unix"
)

// Interrupter raises the signal-equivalent wake that tells a thread blocked
// in the legacy pselect path that an event was captured.
//
// The token is level triggered, and only wakes waiters. Whether a wait was
// interrupted is decided by the generation: a call reads [Interrupter.Generation]
// on entry, and was interrupted only if [Interrupter.Since] reports an
// Interrupt after that. A token left readable by an earlier call therefore
// never interrupts a later one.
type Interrupter struct {
	token  *readiness.Token
	gen    atomic.Uint64
	signal bool
}

// NewInterrupter allocates the interrupt token. If signal is true,
// Interrupt also sends SIGIO to the process, for hosts that handle it.
func NewInterrupter(signal bool) (*Interrupter, error) {
	token, err := readiness.NewToken()
	if err != nil {
		return nil, err
	}
	return &Interrupter{token: token, signal: signal}, nil
}

// Token is the descriptor the legacy path watches.
func (x *Interrupter) Token() *readiness.Token {
	return x.token
}

// Generation counts Interrupt calls.
func (x *Interrupter) Generation() uint64 {
	return x.gen.Load()
}

// Since reports whether Interrupt was called after gen was read from
// Generation.
func (x *Interrupter) Since(gen uint64) bool {
	return x.gen.Load() != gen
}

// Interrupt advances the generation, then raises the wake. Safe to call
// from any goroutine.
func (x *Interrupter) Interrupt() error {
	x.gen.Add(1)
	if err := x.token.Fire(); err != nil {
		return err
	}
	if x.signal {
		return unix.Kill(unix.Getpid(), unix.SIGIO)
	}
	return nil
}

// Close releases the token.
func (x *Interrupter) Close() error {
	return x.token.Close()
}
