// Package pump runs a window system's dispatch loop on the main thread,
// capturing the events that must cut short a pending descriptor wait.
//
// A [Pump] is bound to the goroutine (and OS thread) that created it. Only
// that goroutine may call [Pump.Run] or [Pump.Pass]; [Pump.Wakeup] and
// [Pump.Interrupt] are safe from anywhere. [Synthetic] is a [Toolkit] with
// no window system behind it, for headless hosts and tests.
package pump
