package playback

import (
	"sync"
	"sync/atomic"

	"rf433-go/errcode"
	"rf433-go/services/rf/halcore"
)

// Chain plays a sentinel-terminated buffer by re-arming a one-shot timer from
// its own callback. Each shot sets the level for the duration it schedules,
// so the caller is free as soon as Start returns.
//
// States are IDLE and RUNNING(idx). Every run gets a new generation, and a
// shot carries the generation it was armed for, so a callback that was
// already dispatched when Cancel ran cannot advance a later run.
type Chain struct {
	pin    halcore.Pin
	timer  halcore.Timer
	active bool

	mu  sync.Mutex // guards buf, idx and gen
	buf []uint32
	idx int
	gen uint32

	running atomic.Bool
	err     atomic.Pointer[chainErr]

	fire func(gen uint32) // bound once in NewChain
}

type chainErr struct{ error }

func NewChain(pin halcore.Pin, timer halcore.Timer, activeLow bool) *Chain {
	c := &Chain{pin: pin, timer: timer, active: !activeLow}
	c.fire = c.onFire
	pin.Set(!c.active)
	return c
}

// Start begins playing buf, which must end with a 0 entry. The first level
// is set before Start returns.
func (c *Chain) Start(buf []uint32) error {
	if len(buf) == 0 || buf[len(buf)-1] != 0 {
		return errcode.InvalidParams
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running.Load() {
		return errcode.Busy
	}
	c.running.Store(true)
	c.gen++
	c.err.Store(nil)
	c.buf, c.idx = buf, 0
	return c.step()
}

func (c *Chain) Running() bool { return c.running.Load() }

// Err reports the error that stopped the last run early, if any.
func (c *Chain) Err() error {
	if e := c.err.Load(); e != nil {
		return e.error
	}
	return nil
}

// TakeErr returns and clears the retained error.
func (c *Chain) TakeErr() error {
	if e := c.err.Swap(nil); e != nil {
		return e.error
	}
	return nil
}

// Cancel stops the chain and leaves the pin idle. Shots armed before Cancel
// are ignored if they still fire.
func (c *Chain) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.timer.Stop()
	c.pin.Set(!c.active)
	c.running.Store(false)
}

func (c *Chain) onFire(gen uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || !c.running.Load() {
		return
	}
	if err := c.step(); err != nil {
		c.err.Store(&chainErr{err})
	}
}

// step performs one transition. Callers hold mu.
func (c *Chain) step() error {
	d := c.buf[c.idx]
	if d == 0 {
		c.pin.Set(!c.active)
		c.running.Store(false)
		return nil
	}
	c.pin.Set((c.idx&1 == 0) == c.active)
	c.idx++
	if err := c.timer.Schedule(d, c.fire, c.gen); err != nil {
		c.pin.Set(!c.active)
		c.running.Store(false)
		return errcode.Wrap(errcode.TimerError, "chain", err)
	}
	return nil
}
