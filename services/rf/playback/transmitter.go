// Package playback replays stored codes on the transmitter pin, either from
// a timer callback chain, a pulse generator, or a blocking loop.
package playback

import (
	"rf433-go/errcode"
	"rf433-go/services/rf/codestore"
	"rf433-go/services/rf/halcore"
	"rf433-go/x/timex"
)

const DefaultReps = 5

type Polarity uint8

const (
	ActiveHigh Polarity = iota
	ActiveLow
)

func (p Polarity) String() string {
	if p == ActiveLow {
		return "active_low"
	}
	return "active_high"
}

type Strategy uint8

const (
	StrategyChain Strategy = iota
	StrategyGenerator
	StrategyBlocking
)

func (s Strategy) String() string {
	switch s {
	case StrategyGenerator:
		return "generator"
	case StrategyBlocking:
		return "blocking"
	default:
		return "chain"
	}
}

// ParseStrategy maps a config string to a Strategy.
func ParseStrategy(s string) (Strategy, bool) {
	switch s {
	case "", "chain":
		return StrategyChain, true
	case "generator":
		return StrategyGenerator, true
	case "blocking":
		return StrategyBlocking, true
	}
	return 0, false
}

type Config struct {
	Reps     int
	Polarity Polarity
	Strategy Strategy
}

// Deps are the hardware services a Transmitter may use. Only those the
// chosen strategy needs must be set; Clock and Critical enable SendBlocking.
type Deps struct {
	Timer    halcore.Timer
	Gen      halcore.PulseGenerator
	Clock    halcore.Clock
	Critical halcore.CriticalSection
}

// Transmitter sends codes from a store. Send returns once the waveform is
// running; SendBlocking returns when it has finished.
type Transmitter struct {
	pin halcore.Pin
	st  *codestore.Store
	cfg Config
	d   Deps

	active bool
	native bool

	chain   *Chain
	buf     *Buffer
	latency int
}

func New(pin halcore.Pin, st *codestore.Store, cfg Config, d Deps) (*Transmitter, error) {
	const op = "playback.new"
	if pin == nil || st == nil {
		return nil, errcode.New(errcode.InvalidParams, op, "pin and store required")
	}
	if cfg.Reps < 1 {
		cfg.Reps = DefaultReps
	}
	t := &Transmitter{pin: pin, st: st, cfg: cfg, d: d, active: cfg.Polarity != ActiveLow}

	switch cfg.Strategy {
	case StrategyChain:
		if d.Timer == nil {
			return nil, errcode.New(errcode.InvalidParams, op, "chain needs a timer")
		}
		t.chain = NewChain(pin, d.Timer, cfg.Polarity == ActiveLow)
	case StrategyGenerator:
		if d.Gen == nil {
			return nil, errcode.New(errcode.InvalidParams, op, "no pulse generator")
		}
		caps := d.Gen.Caps()
		if cfg.Polarity == ActiveLow && !caps.ActiveLow {
			return nil, errcode.New(errcode.UnsupportedPolarity, op, "generator cannot idle high")
		}
		t.native = caps.NativeLoop
		pin.Set(!t.active)
	case StrategyBlocking:
		if d.Clock == nil || d.Critical == nil {
			return nil, errcode.New(errcode.InvalidParams, op, "blocking needs a clock and critical section")
		}
		pin.Set(!t.active)
	default:
		return nil, errcode.New(errcode.InvalidParams, op, "unknown strategy")
	}

	t.buf = NewBuffer(1)
	t.Refresh()
	return t, nil
}

func (t *Transmitter) Config() Config { return t.cfg }

// Refresh re-derives the latency and buffer size from the store. Call it
// after the store changes and before the next Send.
func (t *Transmitter) Refresh() {
	t.latency = LatencyMS(t.st.MaxTotal(), t.cfg.Reps)
	if t.cfg.Strategy != StrategyBlocking && !t.Busy() {
		t.buf.Grow(Size(t.st.MaxLen(), t.cfg.Reps, t.native))
	}
}

// LatencyMS is the time, in ms, to send the longest code reps times plus
// two more code lengths of margin.
func LatencyMS(maxTotalUS uint64, reps int) int {
	return int(uint64(reps+2) * maxTotalUS / 1000)
}

// Latency returns the worst-case send duration in ms for the current store.
func (t *Transmitter) Latency() int { return t.latency }

func (t *Transmitter) Busy() bool {
	if t.chain != nil && t.chain.Running() {
		return true
	}
	return t.cfg.Strategy == StrategyGenerator && t.d.Gen.Busy()
}

// Err reports an error raised by the callback chain after Send returned.
func (t *Transmitter) Err() error {
	if t.chain == nil {
		return nil
	}
	return t.chain.Err()
}

// Send starts transmitting key and returns without waiting. With the
// blocking strategy it falls back to SendBlocking. An error retained from
// the previous chain run is reported once in place of starting a new one.
func (t *Transmitter) Send(key string) error {
	if t.cfg.Strategy == StrategyBlocking {
		return t.SendBlocking(key)
	}
	code, err := t.st.Get(key)
	if err != nil {
		return err
	}
	if t.Busy() {
		return errcode.Busy
	}

	if t.chain != nil {
		if err := t.chain.TakeErr(); err != nil {
			return err
		}
		t.buf.Grow(Size(len(code), t.cfg.Reps, false))
		pulses, err := t.buf.Fill(code, t.cfg.Reps)
		if err != nil {
			return err
		}
		return t.chain.Start(pulses)
	}

	reps := t.cfg.Reps
	copies := 1
	if !t.native {
		copies, reps = reps, 1
	}
	t.buf.Grow(len(code)*copies + 1)
	pulses, err := t.buf.Fill(code, copies)
	if err != nil {
		return err
	}
	return t.d.Gen.Run(pulses, reps, t.cfg.Polarity == ActiveLow)
}

// SendBlocking transmits key reps times with the caller spinning on the
// clock, inside a critical section.
func (t *Transmitter) SendBlocking(key string) error {
	if t.d.Clock == nil || t.d.Critical == nil {
		return errcode.New(errcode.Unsupported, "send_blocking", "no clock or critical section")
	}
	code, err := t.st.Get(key)
	if err != nil {
		return err
	}
	if t.Busy() {
		return errcode.Busy
	}

	pin, clk, idle := t.pin, t.d.Clock, !t.active
	t.d.Critical.Enter()
	for r := 0; r < t.cfg.Reps; r++ {
		level := idle
		pin.Set(level)
		for _, d := range code {
			level = !level
			pin.Set(level)
			timex.Spin(clk, d)
		}
	}
	pin.Set(idle)
	t.d.Critical.Exit()
	return nil
}

// Cancel stops a transmission in flight. The pin is left idle.
func (t *Transmitter) Cancel() {
	if t.chain != nil {
		t.chain.Cancel()
		return
	}
	if t.cfg.Strategy == StrategyGenerator {
		t.d.Gen.Stop()
	}
}
