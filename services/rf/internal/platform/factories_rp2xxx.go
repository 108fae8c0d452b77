//go:build rp2040 || rp2350

package platform

import (
	"machine"
	"runtime/interrupt"
	"sync"
	"time"

	"rf433-go/errcode"
	"rf433-go/services/rf/halcore"
	"rf433-go/x/timex"
)

// Open configures the radio pins on Raspberry Pi Pico / Pico 2 boards.
func Open(bp BoardPins) (Resources, error) {
	// Constrain to RP2's user GPIOs (GP0..GP28).
	if bp.RX < 0 || bp.RX > 28 || bp.TX < 0 || bp.TX > 28 {
		return Resources{}, errcode.New(errcode.UnsupportedPlatform, "platform", "pin out of range")
	}
	rx := rp2Pin(machine.Pin(bp.RX))
	rx.Configure(machine.PinConfig{Mode: machine.PinInput})
	tx := rp2Pin(machine.Pin(bp.TX))
	tx.Configure(machine.PinConfig{Mode: machine.PinOutput})
	tx.Low()

	clk := &rp2Clock{start: time.Now()}
	return Resources{
		RX:       rx,
		TX:       tx,
		Clock:    clk,
		Timer:    &rp2Timer{},
		// Software stand-in for a PIO pulse train; it spins while playing.
		Gen:      NewSoftGenerator(tx, clk, halcore.GeneratorCaps{NativeLoop: true, ActiveLow: true, Paired: true}),
		Critical: &rp2Critical{},
	}, nil
}

// rp2Pin wraps machine.Pin so the radio loops call Get/Set directly.
type rp2Pin machine.Pin

func (p rp2Pin) Configure(cfg machine.PinConfig) { machine.Pin(p).Configure(cfg) }
func (p rp2Pin) Get() bool                       { return machine.Pin(p).Get() }
func (p rp2Pin) Set(level bool)                  { machine.Pin(p).Set(level) }
func (p rp2Pin) Low()                            { machine.Pin(p).Low() }

// rp2Clock derives microsecond ticks from the runtime's monotonic timer.
type rp2Clock struct{ start time.Time }

func (c *rp2Clock) NowUS() uint32 { return uint32(time.Since(c.start).Microseconds()) }

// rp2Timer arms one-shot callbacks through the runtime timer queue.
// Schedule runs on the callback goroutine and Stop on the service goroutine.
type rp2Timer struct {
	mu sync.Mutex
	t  *time.Timer
}

func (r *rp2Timer) Schedule(us uint32, fn func(uint32), arg uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.t != nil {
		r.t.Stop()
	}
	r.t = time.AfterFunc(timex.US(us), func() { fn(arg) })
	return nil
}

func (r *rp2Timer) Stop() {
	r.mu.Lock()
	if r.t != nil {
		r.t.Stop()
		r.t = nil
	}
	r.mu.Unlock()
}

// rp2Critical masks interrupts on the current core.
type rp2Critical struct{ state interrupt.State }

func (c *rp2Critical) Enter() { c.state = interrupt.Disable() }
func (c *rp2Critical) Exit()  { interrupt.Restore(c.state) }
