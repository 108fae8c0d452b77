// services/rf/internal/platform/factories_host.go
//go:build !rp2040 && !rp2350

package platform

import (
	"runtime"
	"sync"
	"time"

	"rf433-go/errcode"
	"rf433-go/services/rf/halcore"
	"rf433-go/x/timex"
)

// Open builds host resources for the given pins: inert fake pins, the
// process monotonic clock, time.AfterFunc timers and a soft generator.
func Open(bp BoardPins) (Resources, error) {
	f := DefaultPinFactory()
	rx, ok := f.ByNumber(bp.RX)
	if !ok {
		return Resources{}, errcode.New(errcode.UnsupportedPlatform, "platform", "no rx pin")
	}
	tx, ok := f.ByNumber(bp.TX)
	if !ok {
		return Resources{}, errcode.New(errcode.UnsupportedPlatform, "platform", "no tx pin")
	}
	clk := NewHostClock()
	return Resources{
		RX:       rx,
		TX:       tx,
		Clock:    clk,
		Timer:    &HostTimer{},
		Gen:      NewSoftGenerator(tx, clk, halcore.GeneratorCaps{NativeLoop: true, ActiveLow: true}),
		Critical: HostCritical{},
	}, nil
}

// ----------------------------- Time (host) -----------------------------------

// HostClock reads the process monotonic clock in microseconds.
type HostClock struct{ start time.Time }

func NewHostClock() *HostClock { return &HostClock{start: time.Now()} }

func (c *HostClock) NowUS() uint32 { return uint32(time.Since(c.start).Microseconds()) }

// HostTimer implements halcore.Timer on time.AfterFunc.
type HostTimer struct {
	mu sync.Mutex
	t  *time.Timer
}

func (h *HostTimer) Schedule(us uint32, fn func(uint32), arg uint32) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.t != nil {
		h.t.Stop()
	}
	h.t = time.AfterFunc(timex.US(us), func() { fn(arg) })
	return nil
}

func (h *HostTimer) Stop() {
	h.mu.Lock()
	if h.t != nil {
		h.t.Stop()
		h.t = nil
	}
	h.mu.Unlock()
}

// HostCritical pins the goroutine to its OS thread. The host cannot mask
// interrupts, so capture timing here is best effort.
type HostCritical struct{}

func (HostCritical) Enter() { runtime.LockOSThread() }
func (HostCritical) Exit()  { runtime.UnlockOSThread() }

// ----------------------------- GPIO (host) -----------------------------------

// FakePin implements halcore.Pin for host-side tests.
type FakePin struct {
	mu     sync.RWMutex
	number int
	level  bool
}

func (p *FakePin) Set(level bool) {
	p.mu.Lock()
	p.level = level
	p.mu.Unlock()
}

func (p *FakePin) Get() bool {
	p.mu.RLock()
	v := p.level
	p.mu.RUnlock()
	return v
}

func (p *FakePin) Number() int { return p.number }

// HostPinFactory returns stable *FakePin instances per number.
type HostPinFactory struct {
	mu   sync.Mutex
	pins map[int]*FakePin
}

func (f *HostPinFactory) ByNumber(n int) (halcore.Pin, bool) {
	if n < 0 {
		return nil, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pins == nil {
		f.pins = make(map[int]*FakePin)
	}
	p, ok := f.pins[n]
	if !ok {
		p = &FakePin{number: n}
		f.pins[n] = p
	}
	return p, true
}

// DefaultPinFactory provides a host GPIO factory.
func DefaultPinFactory() *HostPinFactory {
	return &HostPinFactory{pins: make(map[int]*FakePin)}
}
