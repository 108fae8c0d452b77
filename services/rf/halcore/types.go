// services/rf/halcore/types.go
package halcore

// ---- GPIO ----

// Pin is the single radio data line. Both engines call it from timing-critical
// loops, so implementations must be register reads/writes with no locking on MCU.
type Pin interface {
	Get() bool
	Set(level bool)
}

// ---- Time ----

// Clock is a free-running microsecond counter that wraps at 2^32.
// Use timex.Diff to subtract readings.
type Clock interface {
	NowUS() uint32
}

// Timer is a one-shot timer. Schedule replaces any pending shot and calls
// fn(arg) when it expires, so a callback bound once can tell its shots apart
// without allocating. Stop cannot recall a shot whose callback is already
// running or queued to run.
type Timer interface {
	Schedule(us uint32, fn func(arg uint32), arg uint32) error
	Stop()
}

// CriticalSection masks whatever could preempt the caller for the duration of
// a timing-critical loop. Enter/Exit pairs do not nest.
type CriticalSection interface {
	Enter()
	Exit()
}

// ---- Pulse generators ----

// GeneratorCaps describes what a pulse generator backend can do.
type GeneratorCaps struct {
	// NativeLoop: the backend repeats a single copy reps times by itself.
	NativeLoop bool
	// ActiveLow: the backend can idle high and emit marks as low.
	ActiveLow bool
	// Paired: durations are consumed as (mark, space) pairs, so a trailing
	// unpaired mark would leave the carrier on.
	Paired bool
}

// PulseGenerator free-runs a sentinel-terminated waveform without CPU help.
type PulseGenerator interface {
	Caps() GeneratorCaps
	// Run loads pulses (terminated by a 0 entry) and plays them reps times.
	// It returns as soon as the backend has been started.
	Run(pulses []uint32, reps int, activeLow bool) error
	Busy() bool
	Stop()
}
