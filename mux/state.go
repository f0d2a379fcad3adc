package mux

import (
	"sync/atomic"
)

// State is the multiplexer's race state.
//
//	StateIdle → StateRacing   [Multiplex, via CAS]
//	StateRacing → StateIdle   [race decided]
//
// A call that fails the CAS (a concurrent or re-entrant call) uses the
// legacy path instead of racing the pump.
type State uint32

const (
	// StateIdle means no race is in progress.
	StateIdle State = iota
	// StateRacing means a call owns the pump.
	StateRacing
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRacing:
		return "Racing"
	default:
		return "Unknown"
	}
}

// fastState is a lock-free state holder.
type fastState struct {
	v atomic.Uint32
}

func (s *fastState) Load() State {
	return State(s.v.Load())
}

func (s *fastState) TryTransition(from, to State) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}
