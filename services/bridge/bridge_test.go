package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"rf433-go/bus"
	"rf433-go/errcode"
	"rf433-go/types"
)

func TestBridge_EstablishesUARTLinkAndReportsState(t *testing.T) {
	b := bus.NewBus(16)
	conn := b.NewConnection("bridge_test")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Start(ctx, conn)

	stateSub := conn.Subscribe(bus.T("bridge", "state"))
	defer conn.Unsubscribe(stateSub)

	first := nextStatePayload(t, stateSub, 500*time.Millisecond)
	assertLevelStatus(t, first, "idle", "awaiting_config")

	remotes := dialPipes(t)

	cfg := `{"transport":{"type":"uart","uart":{"baud":115200,"rx_pin":1,"tx_pin":0}}}`
	conn.Publish(conn.NewMessage(bus.T("config", "bridge"), cfg, false))

	up := nextStatePayload(t, stateSub, time.Second)
	assertLevelStatus(t, up, "up", "link_established")

	// Closing the far end is a link loss.
	(<-remotes).Close()

	degraded := nextStatePayload(t, stateSub, time.Second)
	assertLevelStatus(t, degraded, "degraded", "link_lost_retrying")
}

func TestBridge_UnknownTransportYieldsErrorState(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("bridge_test_bad")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Start(ctx, conn)

	stateSub := conn.Subscribe(bus.T("bridge", "state"))
	defer conn.Unsubscribe(stateSub)

	_ = nextStatePayload(t, stateSub, 500*time.Millisecond) // initial awaiting_config

	cfg := `{"transport":{"type":"bogus"}}`
	conn.Publish(conn.NewMessage(bus.T("config", "bridge"), cfg, false))

	errState := nextStatePayload(t, stateSub, time.Second)
	assertLevelStatus(t, errState, "error", "transport_init_failed")
}

func TestBridge_ServesRFRequestsOverLink(t *testing.T) {
	b := bus.NewBus(16)
	conn := b.NewConnection("bridge")
	rfConn := b.NewConnection("rf")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fakeRF(ctx, t, rfConn)
	rfConn.Publish(rfConn.NewMessage(bus.T("rf", "status"),
		types.RFState{Level: types.LevelReady, Status: "configured", Keys: 1}, true))

	go Start(ctx, conn)
	stateSub := conn.Subscribe(bus.T("bridge", "state"))
	defer conn.Unsubscribe(stateSub)
	_ = nextStatePayload(t, stateSub, 500*time.Millisecond)

	remotes := dialPipes(t)
	cfg := `{"transport":{"type":"uart","uart":{"baud":115200}},"request_timeout_ms":100}`
	conn.Publish(conn.NewMessage(bus.T("config", "bridge"), cfg, false))

	remote := <-remotes
	defer remote.Close()

	var (
		mu     sync.Mutex
		topics []string
	)
	cl := NewClient(remote)
	cl.Events = func(topic string, _ json.RawMessage) {
		mu.Lock()
		topics = append(topics, topic)
		mu.Unlock()
	}

	var keys types.KeysReply
	if err := cl.Call("keys", nil, &keys); err != nil {
		t.Fatalf("keys: %v", err)
	}
	if !keys.OK || len(keys.Keys) != 1 || keys.Keys[0] != "door" {
		t.Fatalf("keys reply = %+v", keys)
	}

	var show types.ShowReply
	if err := cl.Call("show", types.KeyReq{Key: "door"}, &show); err != nil {
		t.Fatalf("show: %v", err)
	}
	if show.Key != "door" || len(show.Code) != 3 {
		t.Fatalf("show reply = %+v", show)
	}

	err := cl.Call("show", types.KeyReq{Key: "gate"}, nil)
	if !errors.Is(err, errcode.UnknownKey) {
		t.Fatalf("show gate err = %v, want unknown_key", err)
	}

	// Nothing serves rf/bogus; the bridge gives up after the request timeout.
	err = cl.Call("bogus", nil, nil)
	if !errors.Is(err, errcode.Timeout) {
		t.Fatalf("bogus err = %v, want timeout", err)
	}

	// The retained status is forwarded once the link is up; keep the link
	// busy until it has been read.
	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		seen := len(topics) > 0 && topics[0] == "rf/status"
		mu.Unlock()
		if seen {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("rf/status never forwarded (topics=%v)", topics)
		}
		if err := cl.Call("keys", nil, nil); err != nil {
			t.Fatalf("keys: %v", err)
		}
	}
}

func TestFrameCodec(t *testing.T) {
	var buf bytes.Buffer
	wr := newFramedWriter(&buf)
	if err := wr.WriteFrame(Frame{Type: framePing}); err != nil {
		t.Fatal(err)
	}
	if err := wr.writeJSON(frameReq, request{ID: 7, Op: "send", Payload: json.RawMessage(`{"key":"a"}`)}); err != nil {
		t.Fatal(err)
	}
	if got := buf.Bytes()[:3]; !bytes.Equal(got, []byte{framePing, 0, 0}) {
		t.Fatalf("ping header = %v", got)
	}

	rd := newFramedReader(&buf)
	f, err := rd.ReadFrame()
	if err != nil || f.Type != framePing || len(f.Payload) != 0 {
		t.Fatalf("first frame = %+v, %v", f, err)
	}
	f, err = rd.ReadFrame()
	if err != nil || f.Type != frameReq {
		t.Fatalf("second frame = %+v, %v", f, err)
	}
	var r request
	if err := json.Unmarshal(f.Payload, &r); err != nil {
		t.Fatal(err)
	}
	if r.ID != 7 || r.Op != "send" || string(r.Payload) != `{"key":"a"}` {
		t.Fatalf("request = %+v", r)
	}
	if _, err := rd.ReadFrame(); err != io.EOF {
		t.Fatalf("drained reader err = %v, want EOF", err)
	}

	err = wr.WriteFrame(Frame{Type: framePub, Payload: make([]byte, maxPayload+1)})
	if !errors.Is(err, errcode.InvalidParams) {
		t.Fatalf("oversized frame err = %v", err)
	}
}

func TestParsePattern(t *testing.T) {
	got := parsePattern("rf/event/#")
	want := bus.T("rf", "event", "#")
	if len(got) != len(want) {
		t.Fatalf("parsePattern = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("parsePattern = %v, want %v", got, want)
		}
	}
}

func TestBridge_DialFailuresBackOff(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("bridge_test_dial")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Start(ctx, conn)

	stateSub := conn.Subscribe(bus.T("bridge", "state"))
	defer conn.Unsubscribe(stateSub)
	_ = nextStatePayload(t, stateSub, 500*time.Millisecond)

	prev := UARTDial
	t.Cleanup(func() { UARTDial = prev })
	UARTDial = func(context.Context, UARTConfig) (io.ReadWriteCloser, error) {
		return nil, errcode.New(errcode.NotReady, "uart1", "no port")
	}
	conn.Publish(conn.NewMessage(bus.T("config", "bridge"),
		map[string]any{"transport": map[string]any{"type": "uart", "uart": map[string]any{"baud": 9600}}}, false))

	for _, want := range []int64{250, 500} {
		st := nextStatePayload(t, stateSub, 2*time.Second)
		assertLevelStatus(t, st, "degraded", "dial_failed_retrying")
		if st.RetryMS != want || st.Transport != "uart" || st.Error == "" {
			t.Fatalf("state = %+v, want retry %d", st, want)
		}
	}
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// dialPipes installs a UART dialler backed by net.Pipe and hands the far
// end of each link to the caller.
func dialPipes(t *testing.T) <-chan net.Conn {
	t.Helper()
	prev := UARTDial
	t.Cleanup(func() { UARTDial = prev })
	remotes := make(chan net.Conn, 4)
	UARTDial = func(ctx context.Context, _ UARTConfig) (io.ReadWriteCloser, error) {
		lc, rc := net.Pipe()
		remotes <- rc
		return lc, nil
	}
	return remotes
}

// fakeRF answers keys and show for a single stored code.
func fakeRF(ctx context.Context, t *testing.T, conn *bus.Connection) {
	t.Helper()
	keys := conn.Subscribe(bus.T("rf", "keys"))
	show := conn.Subscribe(bus.T("rf", "show"))
	go func() {
		defer conn.Unsubscribe(keys)
		defer conn.Unsubscribe(show)
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-keys.Channel():
				conn.Reply(m, types.KeysReply{OK: true, Keys: []string{"door"}}, false)
			case m := <-show.Channel():
				var req types.KeyReq
				raw, _ := m.Payload.([]byte)
				_ = json.Unmarshal(raw, &req)
				if req.Key != "door" {
					conn.Reply(m, types.ErrorReply{Code: string(errcode.UnknownKey), Error: "no such key"}, false)
					continue
				}
				conn.Reply(m, types.ShowReply{OK: true, Key: "door", Code: []uint32{350, 1050, 0}}, false)
			}
		}
	}()
}

func nextStatePayload(t *testing.T, sub *bus.Subscription, d time.Duration) types.BridgeState {
	t.Helper()
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case m := <-sub.Channel():
		p, ok := m.Payload.(types.BridgeState)
		if !ok {
			t.Fatalf("state payload type: got %T, want types.BridgeState", m.Payload)
		}
		return p
	case <-timer.C:
		t.Fatalf("timeout waiting for bridge/state")
		return types.BridgeState{}
	}
}

func assertLevelStatus(t *testing.T, st types.BridgeState, wantLevel, wantStatus string) {
	t.Helper()
	if string(st.Level) != wantLevel || st.Status != wantStatus {
		t.Fatalf("unexpected state: level=%q status=%q, want level=%q status=%q (%+v)",
			st.Level, st.Status, wantLevel, wantStatus, st)
	}
}

func TestConfigFromRetainedMap(t *testing.T) {
	// config/bridge arrives as the generic JSON map the config service publishes.
	var m map[string]any
	raw := `{"transport":{"type":"uart","uart":{"baud":115200,"tx_pin":4,"rx_pin":5}},"forward":["rf/status"]}`
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatal(err)
	}
	var cfg Config
	if err := types.Decode(m, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Transport.Type != "uart" || cfg.Transport.UART == nil || cfg.Transport.UART.RxPin != 5 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if len(cfg.Forward) != 1 || cfg.Forward[0] != "rf/status" {
		t.Fatalf("forward = %v", cfg.Forward)
	}
	if _, err := newTransport(TransportConfig{Type: "uart"}); !errors.Is(err, errcode.InvalidParams) {
		t.Fatalf("uart without settings: %v", err)
	}
	if _, err := newTransport(TransportConfig{Type: "serial"}); !errors.Is(err, errcode.InvalidParams) {
		t.Fatalf("serial without port: %v", err)
	}
}
