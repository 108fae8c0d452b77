// services/rf/internal/platform/sim.go
package platform

import (
	"errors"
	"sync"

	"rf433-go/services/rf/halcore"
	"rf433-go/x/timex"
)

// Simulated hardware for deterministic tests and off-device learning.

var (
	_ halcore.Clock = (*SimClock)(nil)
	_ halcore.Pin   = (*SignalPin)(nil)
	_ halcore.Pin   = (*RecordingPin)(nil)
	_ halcore.Timer = (*ManualTimer)(nil)
)

// ErrTimerRejected is returned by a ManualTimer armed to fail.
var ErrTimerRejected = errors.New("timer rejected")

// ----------------------------- Clock -----------------------------------------

// SimClock is a microsecond counter that only moves when told to.
// Each NowUS call returns the current time and then advances it by Step.
type SimClock struct {
	mu   sync.Mutex
	now  uint32
	Step uint32
}

func NewSimClock(start, step uint32) *SimClock { return &SimClock{now: start, Step: step} }

func (c *SimClock) NowUS() uint32 {
	c.mu.Lock()
	t := c.now
	c.now += c.Step
	c.mu.Unlock()
	return t
}

// Peek returns the current time without advancing.
func (c *SimClock) Peek() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *SimClock) Advance(us uint32) {
	c.mu.Lock()
	c.now += us
	c.mu.Unlock()
}

// ----------------------------- Input -----------------------------------------

// SignalPin replays a gap sequence as pin levels against a SimClock.
// Every Get advances the clock by one microsecond, so a polling loop sees
// each edge at exactly its scheduled time.
type SignalPin struct {
	clk   *SimClock
	edges []uint32
	next  int
	level bool
}

// NewSignalPin schedules an edge at start and then one after each gap.
func NewSignalPin(clk *SimClock, start uint32, gaps []uint32, initial bool) *SignalPin {
	edges := make([]uint32, 0, len(gaps)+1)
	t := start
	edges = append(edges, t)
	for _, g := range gaps {
		t += g
		edges = append(edges, t)
	}
	return &SignalPin{clk: clk, edges: edges, level: initial}
}

func (p *SignalPin) Get() bool {
	p.clk.Advance(1)
	now := p.clk.Peek()
	for p.next < len(p.edges) && timex.Diff(now, p.edges[p.next]) >= 0 {
		p.level = !p.level
		p.next++
	}
	return p.level
}

func (p *SignalPin) Set(bool) {}

// Remaining reports how many scheduled edges have not yet been seen.
func (p *SignalPin) Remaining() int { return len(p.edges) - p.next }

// ----------------------------- Output ----------------------------------------

// Transition is one recorded output change.
type Transition struct {
	Level bool
	At    uint32
}

// RecordingPin remembers every Set, stamped from an optional SimClock.
type RecordingPin struct {
	mu    sync.Mutex
	clk   *SimClock
	level bool
	log   []Transition
}

func NewRecordingPin(clk *SimClock, initial bool) *RecordingPin {
	return &RecordingPin{clk: clk, level: initial}
}

func (p *RecordingPin) Set(level bool) {
	p.mu.Lock()
	var at uint32
	if p.clk != nil {
		at = p.clk.Peek()
	}
	p.level = level
	p.log = append(p.log, Transition{Level: level, At: at})
	p.mu.Unlock()
}

func (p *RecordingPin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

// Log returns a copy of the recorded transitions.
func (p *RecordingPin) Log() []Transition {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Transition(nil), p.log...)
}

// ----------------------------- Timer -----------------------------------------

// ManualTimer holds at most one pending shot until the test fires it.
type ManualTimer struct {
	mu        sync.Mutex
	pending   func(uint32)
	arg       uint32
	scheduled []uint32

	// FailAfter > 0 makes Schedule fail once that many shots were accepted.
	FailAfter int
}

func (m *ManualTimer) Schedule(us uint32, fn func(uint32), arg uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAfter > 0 && len(m.scheduled) >= m.FailAfter {
		return ErrTimerRejected
	}
	m.scheduled = append(m.scheduled, us)
	m.pending, m.arg = fn, arg
	return nil
}

func (m *ManualTimer) Stop() {
	m.mu.Lock()
	m.pending = nil
	m.mu.Unlock()
}

// Fire runs the pending callback, if any.
func (m *ManualTimer) Fire() bool {
	fn, ok := m.Dispatch()
	if ok {
		fn()
	}
	return ok
}

// Dispatch expires the pending shot but hands its callback back instead of
// running it, like a timer interrupt that has fired and not yet been
// serviced. Stop no longer affects it.
func (m *ManualTimer) Dispatch() (func(), bool) {
	m.mu.Lock()
	fn, arg := m.pending, m.arg
	m.pending = nil
	m.mu.Unlock()
	if fn == nil {
		return nil, false
	}
	return func() { fn(arg) }, true
}

// RunAll fires until nothing is pending and returns the number of shots.
func (m *ManualTimer) RunAll() int {
	n := 0
	for m.Fire() {
		n++
	}
	return n
}

// Scheduled returns the durations of all accepted shots.
func (m *ManualTimer) Scheduled() []uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint32(nil), m.scheduled...)
}

// NopCritical is a CriticalSection that does nothing.
type NopCritical struct{}

func (NopCritical) Enter() {}
func (NopCritical) Exit()  {}
