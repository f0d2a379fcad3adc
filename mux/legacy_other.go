//go:build unix && !linux

package mux

import (
	"context"

	"github.com/joeycumines/go-uiselect/fdset"
	"github.com/joeycumines/go-uiselect/readiness"
)

const inlineSupported = false

// legacy polls in slices, checking the interrupter between them.
func (m *Multiplexer) legacy(ctx context.Context, watch fdset.Watch, deadline Deadline, since uint64) (Outcome, error) {
	token := m.interrupter.Token()
	for {
		if token.Fired() {
			token.Reset()
		}
		if m.interrupter.Since(since) {
			return Outcome{Kind: Interrupted}, nil
		}
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		out, err := readiness.ProbeTimeout(watch, min(deadline.Remaining(), m.slice))
		if err != nil {
			return Outcome{}, err
		}
		if !out.Empty() {
			return Outcome{Kind: ReadinessArrived, Ready: out}, nil
		}
		if deadline.Expired() {
			return Outcome{Kind: TimedOut}, nil
		}
	}
}

func (m *Multiplexer) raceInline(context.Context, fdset.Watch, Deadline, uint64) (Outcome, error) {
	return Outcome{}, ErrUnsupported
}
