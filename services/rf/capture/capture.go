// Package capture learns a remote-control code by timing the edges of the
// demodulated receiver output and averaging the repeated frames.
package capture

import (
	"strconv"

	"rf433-go/errcode"
	"rf433-go/services/rf/codestore"
	"rf433-go/services/rf/halcore"
	"rf433-go/x/mathx"
	"rf433-go/x/timex"
)

const (
	DefaultNEdges    = 800 // roughly 15 frames of a typical remote
	DefaultMinFrames = 5
	DefaultTolerance = 0.8

	minEdges = 8
)

// Config tunes a capture engine. Zero values select the defaults.
type Config struct {
	NEdges    int
	MinFrames int
	Tolerance float64
	// TimeoutUS bounds the wait for any single edge; 0 waits forever.
	TimeoutUS uint32
}

func (c Config) withDefaults() Config {
	if c.NEdges <= 0 {
		c.NEdges = DefaultNEdges
	}
	c.NEdges = mathx.Max(c.NEdges, minEdges)
	if c.MinFrames <= 0 {
		c.MinFrames = DefaultMinFrames
	}
	if c.Tolerance <= 0 || c.Tolerance > 1 {
		c.Tolerance = DefaultTolerance
	}
	return c
}

// Report summarises one capture attempt for the caller to format.
type Report struct {
	Edges     int     `json:"edges"`
	Gaps      int     `json:"gaps"`
	Threshold uint32  `json:"threshold_us"`
	Frames    int     `json:"frames"`
	FrameLen  int     `json:"frame_len"`
	Discarded int     `json:"discarded"`
	Averaged  int     `json:"averaged"`
	Quality   float64 `json:"quality"` // mean std dev in µs; 0 is perfect
}

// Engine owns the edge timeline and gap buffers, both sized once.
type Engine struct {
	pin halcore.Pin
	clk halcore.Clock
	cs  halcore.CriticalSection
	cfg Config

	times []uint32
	gaps  []uint32
}

func New(pin halcore.Pin, clk halcore.Clock, cs halcore.CriticalSection, cfg Config) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		pin:   pin,
		clk:   clk,
		cs:    cs,
		cfg:   cfg,
		times: make([]uint32, cfg.NEdges),
		gaps:  make([]uint32, 0, cfg.NEdges),
	}
}

func (e *Engine) Config() Config { return e.cfg }

// Capture records NEdges edges from the pin and reduces them to one code.
// It blocks the caller until the timeline is full.
func (e *Engine) Capture() (codestore.Code, Report, error) {
	if err := e.record(); err != nil {
		return nil, Report{}, err
	}
	e.gaps = Gaps(e.gaps, e.times)
	code, rep, err := Process(e.gaps, e.cfg)
	rep.Edges = len(e.times)
	return code, rep, err
}

// Learn captures a code and stores it under key. A failed capture leaves
// the store as it was.
func (e *Engine) Learn(key string, st *codestore.Store) (Report, error) {
	code, rep, err := e.Capture()
	if err != nil {
		return rep, err
	}
	return rep, st.Put(key, code)
}

// record fills e.times with one timestamp per level change. This is the
// timing-critical section: nothing in here may allocate, log or yield.
func (e *Engine) record() error {
	p, clk, times := e.pin, e.clk, e.times
	timeout := e.cfg.TimeoutUS

	e.cs.Enter()
	defer e.cs.Exit()

	last := clk.NowUS()
	for x := range times {
		v := p.Get()
		var spins uint32
		for v == p.Get() {
			spins++
			if timeout != 0 && spins&0xFF == 0 && timex.Since(clk.NowUS(), last) > timeout {
				return errcode.CaptureTimeout
			}
		}
		last = clk.NowUS()
		times[x] = last
	}
	return nil
}

// Process reduces a gap sequence to an averaged code. It is the part of
// Capture that does not touch hardware, so recorded timelines can be
// learned off-device.
func Process(gaps []uint32, cfg Config) (codestore.Code, Report, error) {
	cfg = cfg.withDefaults()
	rep := Report{Gaps: len(gaps)}
	if len(gaps) == 0 {
		return nil, rep, errcode.New(errcode.TooFewFrames, "capture", "no gaps")
	}
	rep.Threshold = Threshold(gaps, cfg.Tolerance)

	frames := Segment(gaps, rep.Threshold)
	rep.Frames = len(frames)
	if len(frames) < cfg.MinFrames {
		return nil, rep, tooFew(len(frames))
	}

	length, _ := Modal(frames)
	rep.FrameLen = length
	frames = Filter(frames, length)
	rep.Discarded = rep.Frames - len(frames)
	if len(frames) < cfg.MinFrames {
		return nil, rep, tooFew(len(frames))
	}

	mean, q := Average(frames)
	rep.Averaged = len(frames)
	rep.Quality = q
	return codestore.Code(mean), rep, nil
}

// FromTimeline converts absolute edge timestamps into the gap sequence
// Capture would have processed.
func FromTimeline(times []uint32) []uint32 {
	return Gaps(make([]uint32, 0, len(times)), times)
}

func tooFew(n int) error {
	return errcode.New(errcode.TooFewFrames, "capture", strconv.Itoa(n)+" valid frames")
}
