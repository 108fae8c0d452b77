package rf

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"rf433-go/bus"
	"rf433-go/errcode"
	"rf433-go/services/rf/codestore"
	"rf433-go/services/rf/halcore"
	"rf433-go/services/rf/internal/platform"
	"rf433-go/services/rf/playback"
	"rf433-go/types"
)

// simBoard hands the service simulated hardware instead of real pins.
type simBoard struct {
	clk   *platform.SimClock
	rx    halcore.Pin
	tx    *platform.RecordingPin
	timer *platform.ManualTimer
}

func (b *simBoard) open(platform.BoardPins) (platform.Resources, error) {
	return platform.Resources{
		RX:       b.rx,
		TX:       b.tx,
		Clock:    b.clk,
		Timer:    b.timer,
		Critical: platform.NopCritical{},
	}, nil
}

func startService(t *testing.T, open opener, cfg any) *bus.Connection {
	t.Helper()
	b := bus.NewBus(16)
	conn := b.NewConnection("test")
	if cfg != nil {
		conn.Publish(conn.NewMessage(bus.T("config", "rf"), cfg, true))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		run(ctx, b.NewConnection("rf"), open)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return conn
}

func waitLevel(t *testing.T, conn *bus.Connection, want types.Level) types.RFState {
	t.Helper()
	sub := conn.Subscribe(topicStatus)
	defer conn.Unsubscribe(sub)
	deadline := time.After(2 * time.Second)
	for {
		select {
		case m := <-sub.Channel():
			if st, ok := m.Payload.(types.RFState); ok && st.Level == want {
				return st
			}
		case <-deadline:
			t.Fatalf("status never reached %q", want)
		}
	}
}

func request(t *testing.T, conn *bus.Connection, op string, payload any) any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r, err := conn.RequestWait(ctx, conn.NewMessage(bus.T("rf", op), payload, false))
	if err != nil {
		t.Fatalf("%s: %v", op, err)
	}
	return r.Payload
}

func expectErr(t *testing.T, got any, want errcode.Code) {
	t.Helper()
	e, ok := got.(types.ErrorReply)
	if !ok || e.OK || e.Code != string(want) {
		t.Fatalf("reply = %#v, want error %q", got, want)
	}
}

func TestServiceLearnSendFlow(t *testing.T) {
	frame := []uint32{400, 1200, 8000}
	var gaps []uint32
	for i := 0; i < 30; i++ {
		gaps = append(gaps, frame...)
	}
	clk := platform.NewSimClock(0, 0)
	board := &simBoard{
		clk:   clk,
		rx:    platform.NewSignalPin(clk, 10, gaps, false),
		tx:    platform.NewRecordingPin(nil, false),
		timer: &platform.ManualTimer{},
	}
	dir := t.TempDir()
	store := filepath.Join(dir, "codes.json")
	conn := startService(t, board.open, map[string]any{
		"board": "pico", "nedges": 60, "reps": 2, "store": store, "timeout_us": 20000,
	})
	waitLevel(t, conn, types.LevelReady)

	events := conn.Subscribe(topicLearned)

	// learn
	rep, ok := request(t, conn, "learn", types.KeyReq{Key: "door"}).(types.LearnReport)
	if !ok || !rep.OK || !reflect.DeepEqual(rep.Code, frame) || rep.Averaged < 5 {
		t.Fatalf("learn reply = %#v", rep)
	}
	select {
	case m := <-events.Channel():
		if ev := m.Payload.(types.LearnReport); ev.Key != "door" {
			t.Fatalf("event = %#v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no learned event")
	}
	saved := codestore.New()
	if err := saved.Load(store); err != nil || saved.Len() != 1 {
		t.Fatalf("store file after learn: %v, %d keys", err, saved.Len())
	}

	// keys / show / latency
	if kr := request(t, conn, "keys", nil).(types.KeysReply); !reflect.DeepEqual(kr.Keys, []string{"door"}) {
		t.Fatalf("keys = %v", kr.Keys)
	}
	if sr := request(t, conn, "show", map[string]any{"key": "door"}).(types.ShowReply); !reflect.DeepEqual(sr.Code, frame) {
		t.Fatalf("show = %#v", sr)
	}
	// (2+2) * 9600 / 1000
	if lr := request(t, conn, "latency", nil).(types.LatencyReply); lr.LatencyMS != 38 {
		t.Fatalf("latency = %d", lr.LatencyMS)
	}

	// send
	if sr, ok := request(t, conn, "send", types.SendReq{Key: "door"}).(types.SendReply); !ok || sr.Blocking {
		t.Fatalf("send reply = %#v", sr)
	}
	if n := board.timer.RunAll(); n != 6 {
		t.Fatalf("timer fired %d times", n)
	}
	if !reflect.DeepEqual(board.timer.Scheduled(), []uint32{400, 1200, 8000, 400, 1200, 8000}) {
		t.Fatalf("scheduled = %v", board.timer.Scheduled())
	}
	expectErr(t, request(t, conn, "send", types.SendReq{Key: "nope"}), errcode.UnknownKey)

	// save elsewhere, delete, load back
	backup := filepath.Join(dir, "backup.json")
	request(t, conn, "save", types.PathReq{Path: backup})
	if r := request(t, conn, "delete", types.KeyReq{Key: "door"}); r != (types.OKReply{OK: true}) {
		t.Fatalf("delete = %#v", r)
	}
	if kr := request(t, conn, "keys", nil).(types.KeysReply); len(kr.Keys) != 0 {
		t.Fatalf("keys after delete = %v", kr.Keys)
	}
	expectErr(t, request(t, conn, "show", types.KeyReq{Key: "door"}), errcode.UnknownKey)
	if kr := request(t, conn, "load", types.PathReq{Path: backup}).(types.KeysReply); !reflect.DeepEqual(kr.Keys, []string{"door"}) {
		t.Fatalf("keys after load = %v", kr.Keys)
	}

	// The signal is used up, so a second learn times out and stores nothing.
	expectErr(t, request(t, conn, "learn", types.KeyReq{Key: "gate"}), errcode.CaptureTimeout)
	if kr := request(t, conn, "keys", nil).(types.KeysReply); !reflect.DeepEqual(kr.Keys, []string{"door"}) {
		t.Fatalf("keys after failed learn = %v", kr.Keys)
	}

	expectErr(t, request(t, conn, "learn", types.KeyReq{}), errcode.InvalidParams)
	if r := request(t, conn, "cancel", nil); r != (types.OKReply{OK: true}) {
		t.Fatalf("cancel = %#v", r)
	}
}

func TestServiceBlockingSendFromStoreFile(t *testing.T) {
	store := filepath.Join(t.TempDir(), "codes.json")
	if err := os.WriteFile(store, []byte(`{"tv": [100, 200, 300, 400]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	clk := platform.NewSimClock(0, 1)
	board := &simBoard{
		clk: clk,
		rx:  &platform.FakePin{},
		tx:  platform.NewRecordingPin(clk, false),
	}
	conn := startService(t, board.open, types.RFConfig{
		Board: "pico", RXPin: -1, TXPin: -1, Reps: 1, Strategy: "blocking", Store: store,
	})
	st := waitLevel(t, conn, types.LevelReady)
	if st.Keys != 1 {
		t.Fatalf("status keys = %d", st.Keys)
	}

	sr, ok := request(t, conn, "send", types.SendReq{Key: "tv"}).(types.SendReply)
	if !ok || !sr.Blocking {
		t.Fatalf("send reply = %#v", sr)
	}
	log := board.tx.Log()
	// idle at construction, idle at rep start, four pulses, final idle
	if len(log) != 7 {
		t.Fatalf("%d transitions: %v", len(log), log)
	}
	if !log[2].Level || log[3].Level {
		t.Fatalf("levels = %v", log)
	}
	if d := log[3].At - log[2].At; d < 100 || d > 101 {
		t.Fatalf("first mark lasted %d", d)
	}
}

func TestServiceNotReadyBeforeConfig(t *testing.T) {
	conn := startService(t, (&simBoard{}).open, nil)
	waitLevel(t, conn, types.LevelIdle)
	expectErr(t, request(t, conn, "keys", nil), errcode.NotReady)
}

func TestServiceRejectsUnsupportedBoard(t *testing.T) {
	conn := startService(t, (&simBoard{}).open, map[string]any{"board": "esp8266"})
	st := waitLevel(t, conn, types.LevelError)
	if !strings.Contains(st.Error, string(errcode.UnsupportedPlatform)) {
		t.Fatalf("status error = %q", st.Error)
	}
}

func TestParseConfig(t *testing.T) {
	s, err := parseConfig(map[string]any{"board": "pico"})
	if err != nil {
		t.Fatal(err)
	}
	if s.pins.RX != 17 || s.pins.TX != 16 || s.playback.Strategy != playback.StrategyChain || s.store != "" {
		t.Fatalf("defaults = %+v", s)
	}

	s, err = parseConfig([]byte(`{"board":"esp32","rx_pin":0,"active_low":true,"strategy":"generator","nedges":400}`))
	if err != nil {
		t.Fatal(err)
	}
	if s.pins.RX != 0 || s.pins.TX != 23 || s.playback.Polarity != playback.ActiveLow ||
		s.playback.Strategy != playback.StrategyGenerator || s.capture.NEdges != 400 {
		t.Fatalf("parsed = %+v", s)
	}

	bad := []any{
		map[string]any{},
		map[string]any{"board": "pico", "strategy": "rmt"},
		map[string]any{"board": "pico", "reps": -1},
		map[string]any{"board": "nope"},
		"{",
	}
	for _, p := range bad {
		if _, err := parseConfig(p); err == nil {
			t.Fatalf("parseConfig(%v) accepted", p)
		}
	}
}
