// Package mux emulates a blocking pselect while running a window system's
// main-thread loop, so that user input cuts the wait short.
//
// # Racing
//
// Each call races three competitors: descriptor readiness (observed by a
// background [readiness.Waiter]), the deadline, and interrupting events
// captured by the [pump.Pump] on the calling thread. The pump adjudicates,
// and UI events win ties. Captured events are appended to a
// [uievent.Buffer], which the host drains after an Interrupted outcome.
//
// Every call ends in exactly one of [ReadinessArrived], [Interrupted] or
// [TimedOut]. Nothing is carried between calls: a waiter cancelled because
// the pump won never reports into a later call, and an interrupt (or a
// capture) is only seen by the calls in progress when it happened.
//
// # Paths
//
// Calls are served by one of three paths:
//   - race: the calling thread owns the pump, and a waiter runs in the
//     background
//   - inline (Linux, [WithInline]): pump passes interleaved with a pselect
//     over the watch set, the toolkit's connection and the interrupter
//   - legacy: no toolkit, a call from another thread, or a race already in
//     progress; a plain pselect that captured events and [Multiplexer.Interrupt]
//     cut short
//
// # Usage
//
//	m, err := mux.New(mux.WithToolkit(toolkit))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Close()
//
//	n, err := m.Select(nfds, read, write, timeout)
//	if errors.Is(err, mux.ErrInterrupted) {
//	    for _, e := range m.Buffer().Drain() {
//	        // handle e
//	    }
//	}
package mux
