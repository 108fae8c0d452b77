package rf

import (
	"rf433-go/errcode"
	"rf433-go/services/rf/capture"
	"rf433-go/services/rf/internal/platform"
	"rf433-go/services/rf/playback"
	"rf433-go/types"
)

// settings is a validated types.RFConfig.
type settings struct {
	pins     platform.BoardPins
	capture  capture.Config
	playback playback.Config
	store    string
}

func parseConfig(payload any) (settings, error) {
	c := types.RFConfig{RXPin: -1, TXPin: -1}
	if err := types.Decode(payload, &c); err != nil {
		return settings{}, errcode.Wrap(errcode.InvalidParams, "rf.config", err)
	}
	if c.Board == "" {
		return settings{}, errcode.New(errcode.InvalidParams, "rf.config", "board required")
	}
	pins, err := platform.Pins(c.Board, c.RXPin, c.TXPin)
	if err != nil {
		return settings{}, err
	}
	strat, ok := playback.ParseStrategy(c.Strategy)
	if !ok {
		return settings{}, errcode.New(errcode.InvalidParams, "rf.config", "unknown strategy "+c.Strategy)
	}
	if c.NEdges < 0 || c.Reps < 0 {
		return settings{}, errcode.New(errcode.InvalidParams, "rf.config", "negative count")
	}
	pol := playback.ActiveHigh
	if c.ActiveLow {
		pol = playback.ActiveLow
	}
	return settings{
		pins:     pins,
		capture:  capture.Config{NEdges: c.NEdges, TimeoutUS: c.TimeoutUS},
		playback: playback.Config{Reps: c.Reps, Polarity: pol, Strategy: strat},
		store:    c.Store,
	}, nil
}
