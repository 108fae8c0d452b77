// services/rf/internal/platform/softgen.go
package platform

import (
	"sync"
	"sync/atomic"

	"rf433-go/errcode"
	"rf433-go/services/rf/halcore"
	"rf433-go/x/timex"
)

// Ensure the generator satisfies the contract at compile time.
var _ halcore.PulseGenerator = (*SoftGenerator)(nil)

// SoftGenerator plays a waveform from its own goroutine, spinning on the
// clock between edges. It is a software stand-in for RMT/PIO hardware with
// the same caps. On TinyGo the spinning goroutine never yields, so Run
// returning does not free the CPU until the waveform ends.
type SoftGenerator struct {
	pin  halcore.Pin
	clk  halcore.Clock
	caps halcore.GeneratorCaps

	busy atomic.Bool
	stop atomic.Bool
	wg   sync.WaitGroup
}

func NewSoftGenerator(pin halcore.Pin, clk halcore.Clock, caps halcore.GeneratorCaps) *SoftGenerator {
	return &SoftGenerator{pin: pin, clk: clk, caps: caps}
}

func (g *SoftGenerator) Caps() halcore.GeneratorCaps { return g.caps }

func (g *SoftGenerator) Busy() bool { return g.busy.Load() }

// Stop makes the running waveform end at the next edge with the pin idle.
func (g *SoftGenerator) Stop() { g.stop.Store(true) }

// Wait blocks until the current waveform has finished.
func (g *SoftGenerator) Wait() { g.wg.Wait() }

func (g *SoftGenerator) Run(pulses []uint32, reps int, activeLow bool) error {
	if activeLow && !g.caps.ActiveLow {
		return errcode.UnsupportedPolarity
	}
	n := 0
	for n < len(pulses) && pulses[n] != 0 {
		n++
	}
	if g.caps.Paired && n&1 == 1 {
		// Drop a trailing mark so the carrier is not left on.
		n--
	}
	if n == 0 || reps < 1 {
		return errcode.InvalidParams
	}
	if !g.caps.NativeLoop {
		reps = 1
	}
	if !g.busy.CompareAndSwap(false, true) {
		return errcode.Busy
	}
	g.stop.Store(false)
	g.wg.Add(1)
	go g.run(pulses[:n], reps, !activeLow)
	return nil
}

func (g *SoftGenerator) run(p []uint32, reps int, active bool) {
	defer g.wg.Done()
	defer g.busy.Store(false)
	idle := !active
	for r := 0; r < reps; r++ {
		for i, d := range p {
			if g.stop.Load() {
				g.pin.Set(idle)
				return
			}
			g.pin.Set((i&1 == 0) == active)
			timex.Spin(g.clk, d)
		}
	}
	g.pin.Set(idle)
}
