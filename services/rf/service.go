// Package rf is the radio service: it owns the capture engine, the
// transmitter and the code store, and serves them over the bus.
package rf

import (
	"context"
	"errors"
	"io/fs"
	"strconv"

	"rf433-go/bus"
	"rf433-go/errcode"
	"rf433-go/services/rf/capture"
	"rf433-go/services/rf/codestore"
	"rf433-go/services/rf/internal/platform"
	"rf433-go/services/rf/playback"
	"rf433-go/types"
	"rf433-go/x/timex"
)

var (
	topicConfig  = bus.T("config", "rf")
	topicStatus  = bus.T("rf", "status")
	topicLearned = bus.T("rf", "event", "learned")
)

// ops are served on rf/<op>.
var ops = []string{"learn", "send", "delete", "keys", "show", "load", "save", "latency", "cancel"}

// opener turns board pins into hardware; platform.Open outside tests.
type opener func(platform.BoardPins) (platform.Resources, error)

// -----------------------------------------------------------------------------
// Entry point
// -----------------------------------------------------------------------------

// Run serves rf requests until ctx is cancelled. It waits for config/rf
// before touching any pins.
func Run(ctx context.Context, conn *bus.Connection) {
	run(ctx, conn, platform.Open)
}

func run(ctx context.Context, conn *bus.Connection, open opener) {
	s := &service{conn: conn, open: open, st: codestore.New()}
	s.loop(ctx)
}

type service struct {
	conn *bus.Connection
	open opener

	st  *codestore.Store
	cfg settings
	res platform.Resources
	cap *capture.Engine
	tx  *playback.Transmitter
}

func (s *service) ready() bool { return s.tx != nil }

// -----------------------------------------------------------------------------
// Main loop
// -----------------------------------------------------------------------------

func (s *service) loop(ctx context.Context) {
	cfgSub := s.conn.Subscribe(topicConfig)
	defer s.conn.Unsubscribe(cfgSub)

	// Requests fan in so they are served strictly one at a time.
	reqs := make(chan *bus.Message, len(ops))
	for _, op := range ops {
		sub := s.conn.Subscribe(bus.T("rf", op))
		defer s.conn.Unsubscribe(sub)
		go forward(ctx, sub, reqs)
	}

	s.publishState(types.LevelIdle, "awaiting_config", nil)

	for {
		select {
		case <-ctx.Done():
			if s.tx != nil {
				s.tx.Cancel()
			}
			s.publishState(types.LevelStopped, "context_cancelled", nil)
			return

		case msg := <-cfgSub.Channel():
			if err := s.applyConfig(msg.Payload); err != nil {
				println("[rf] config: " + err.Error())
				s.publishState(types.LevelError, "apply_config_failed", err)
				continue
			}
			s.publishState(types.LevelReady, "configured", nil)

		case msg := <-reqs:
			s.handle(msg)
		}
	}
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

func (s *service) applyConfig(payload any) error {
	cfg, err := parseConfig(payload)
	if err != nil {
		return err
	}
	if s.tx != nil {
		s.tx.Cancel()
	}
	res, err := s.open(cfg.pins)
	if err != nil {
		return err
	}
	if cfg.store != "" {
		if err := s.st.Load(cfg.store); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	tx, err := playback.New(res.TX, s.st, cfg.playback, playback.Deps{
		Timer:    res.Timer,
		Gen:      res.Gen,
		Clock:    res.Clock,
		Critical: res.Critical,
	})
	if err != nil {
		return err
	}
	s.cfg, s.res, s.tx = cfg, res, tx
	s.cap = capture.New(res.RX, res.Clock, res.Critical, cfg.capture)

	println("[rf] board", cfg.pins.Board, "rx", cfg.pins.RX, "tx", cfg.pins.TX,
		"strategy", cfg.playback.Strategy.String(), "keys", s.st.Len())
	return nil
}

// -----------------------------------------------------------------------------
// Requests
// -----------------------------------------------------------------------------

func (s *service) handle(msg *bus.Message) {
	if len(msg.Topic) != 2 {
		return
	}
	op, _ := msg.Topic[1].(string)
	if !s.ready() {
		s.replyErr(msg, errcode.NotReady)
		return
	}

	var (
		out any
		err error
	)
	switch op {
	case "learn":
		out, err = s.learn(msg.Payload)
	case "send":
		out, err = s.send(msg.Payload)
	case "delete":
		out, err = s.delete(msg.Payload)
	case "keys":
		out = types.KeysReply{OK: true, Keys: s.st.Keys()}
	case "show":
		out, err = s.show(msg.Payload)
	case "load":
		out, err = s.load(msg.Payload)
	case "save":
		out, err = s.save(msg.Payload)
	case "latency":
		out = types.LatencyReply{OK: true, LatencyMS: s.tx.Latency()}
	case "cancel":
		s.tx.Cancel()
		out = types.OKReply{OK: true}
	default:
		err = errcode.New(errcode.InvalidTopic, "rf", "unknown op "+op)
	}
	if err != nil {
		println("[rf] " + op + ": " + err.Error())
		s.replyErr(msg, err)
		return
	}
	s.reply(msg, out)
}

func (s *service) learn(p any) (any, error) {
	key, err := keyOf(p)
	if err != nil {
		return nil, err
	}
	s.publishState(types.LevelLearning, key, nil)
	start := timex.NowMs()
	rep, err := s.cap.Learn(key, s.st)
	if err != nil {
		s.publishState(types.LevelReady, "learn_failed", err)
		return nil, err
	}
	s.tx.Refresh()

	code, _ := s.st.Get(key)
	out := types.LearnReport{
		OK:        true,
		Key:       key,
		Edges:     rep.Edges,
		Frames:    rep.Frames,
		FrameLen:  rep.FrameLen,
		Discarded: rep.Discarded,
		Averaged:  rep.Averaged,
		Threshold: rep.Threshold,
		Quality:   rep.Quality,
		Code:      code,
	}
	println("[rf] learned", key, "frames", rep.Averaged, "len", rep.FrameLen,
		"quality", strconv.FormatFloat(rep.Quality, 'f', 1, 64),
		"in", timex.NowMs()-start, "ms")
	s.conn.Publish(s.conn.NewMessage(topicLearned, out, false))

	err = s.persist()
	s.publishState(types.LevelReady, "learned", err)
	return out, err
}

func (s *service) send(p any) (any, error) {
	var req types.SendReq
	if err := types.Decode(p, &req); err != nil {
		return nil, errcode.Wrap(errcode.InvalidParams, "rf.send", err)
	}
	if req.Key == "" {
		return nil, errcode.New(errcode.InvalidParams, "rf.send", "key required")
	}
	blocking := req.Blocking || s.cfg.playback.Strategy == playback.StrategyBlocking
	if !blocking {
		if err := s.tx.Send(req.Key); err != nil {
			return nil, err
		}
		return types.SendReply{OK: true, LatencyMS: s.tx.Latency()}, nil
	}

	s.publishState(types.LevelSending, req.Key, nil)
	err := s.tx.SendBlocking(req.Key)
	s.publishState(types.LevelReady, "sent", nil)
	if err != nil {
		return nil, err
	}
	return types.SendReply{OK: true, Blocking: true}, nil
}

func (s *service) delete(p any) (any, error) {
	key, err := keyOf(p)
	if err != nil {
		return nil, err
	}
	if err := s.st.Delete(key); err != nil {
		return nil, err
	}
	s.tx.Refresh()
	if err := s.persist(); err != nil {
		return nil, err
	}
	return types.OKReply{OK: true}, nil
}

func (s *service) show(p any) (any, error) {
	key, err := keyOf(p)
	if err != nil {
		return nil, err
	}
	code, err := s.st.Get(key)
	if err != nil {
		return nil, err
	}
	return types.ShowReply{OK: true, Key: key, Code: code}, nil
}

func (s *service) load(p any) (any, error) {
	path, err := s.pathOf(p)
	if err != nil {
		return nil, err
	}
	if err := s.st.Load(path); err != nil {
		return nil, err
	}
	s.tx.Refresh()
	return types.KeysReply{OK: true, Keys: s.st.Keys()}, nil
}

func (s *service) save(p any) (any, error) {
	path, err := s.pathOf(p)
	if err != nil {
		return nil, err
	}
	if err := s.st.Save(path); err != nil {
		return nil, err
	}
	return types.OKReply{OK: true}, nil
}

// persist writes the store back to the configured file, if any.
func (s *service) persist() error {
	if s.cfg.store == "" {
		return nil
	}
	return s.st.Save(s.cfg.store)
}

func keyOf(p any) (string, error) {
	var req types.KeyReq
	if err := types.Decode(p, &req); err != nil {
		return "", errcode.Wrap(errcode.InvalidParams, "rf", err)
	}
	if req.Key == "" {
		return "", errcode.New(errcode.InvalidParams, "rf", "key required")
	}
	return req.Key, nil
}

func (s *service) pathOf(p any) (string, error) {
	var req types.PathReq
	if err := types.Decode(p, &req); err != nil {
		return "", errcode.Wrap(errcode.InvalidParams, "rf", err)
	}
	if req.Path == "" {
		req.Path = s.cfg.store
	}
	if req.Path == "" {
		return "", errcode.New(errcode.InvalidParams, "rf", "no path and no configured store")
	}
	return req.Path, nil
}

// -----------------------------------------------------------------------------
// Bus helpers
// -----------------------------------------------------------------------------

func forward(ctx context.Context, sub *bus.Subscription, out chan<- *bus.Message) {
	for msg := range sub.Channel() {
		select {
		case out <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (s *service) publishState(level types.Level, status string, err error) {
	st := types.RFState{Level: level, Status: status, Keys: s.st.Len(), TS: timex.NowMs()}
	if err != nil {
		st.Error = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(topicStatus, st, true))
}

func (s *service) reply(req *bus.Message, payload any) {
	if req.CanReply() {
		s.conn.Reply(req, payload, false)
	}
}

func (s *service) replyErr(req *bus.Message, err error) {
	if req.CanReply() {
		s.conn.Reply(req, types.ErrorReply{Code: string(errcode.Of(err)), Error: err.Error()}, false)
	}
}
