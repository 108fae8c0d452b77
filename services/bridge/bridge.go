// Package bridge carries rf requests, replies and status over a framed byte
// link, so a host can drive the device through a serial port.
package bridge

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"rf433-go/bus"
	"rf433-go/errcode"
	"rf433-go/types"
	"rf433-go/x/mathx"
)

var (
	topicConfig = bus.T("config", "bridge")
	topicState  = bus.T("bridge", "state")
)

const (
	defaultRequestTimeout = 30 * time.Second
	pingEvery             = 5 * time.Second
	retryMin              = 250 * time.Millisecond
	retryMax              = 5 * time.Second
)

var defaultForward = []string{"rf/status", "rf/event/#"}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// Config is supplied on topic "config/bridge".
type Config struct {
	Transport TransportConfig `json:"transport"`
	// Learning blocks for a whole capture, hence the generous default.
	RequestTimeoutMS int `json:"request_timeout_ms,omitempty"`
	// Topic patterns published to the host.
	Forward []string `json:"forward,omitempty"`
}

func (c Config) requestTimeout() time.Duration {
	if c.RequestTimeoutMS > 0 {
		return time.Duration(c.RequestTimeoutMS) * time.Millisecond
	}
	return defaultRequestTimeout
}

func (c Config) forward() []bus.Topic {
	pats := c.Forward
	if len(pats) == 0 {
		pats = defaultForward
	}
	out := make([]bus.Topic, 0, len(pats))
	for _, p := range pats {
		out = append(out, parsePattern(p))
	}
	return out
}

type TransportConfig struct {
	// "uart", "serial" (host builds) or a name added with RegisterTransport.
	Type   string        `json:"type"`
	UART   *UARTConfig   `json:"uart,omitempty"`
	Serial *SerialConfig `json:"serial,omitempty"`
}

// UARTConfig is handed to UARTDial.
type UARTConfig struct {
	Baud  int `json:"baud"`
	RxPin int `json:"rx_pin"`
	TxPin int `json:"tx_pin"`
}

// SerialConfig names a host serial device.
type SerialConfig struct {
	Port          string `json:"port"`
	Baud          int    `json:"baud"`
	ReadTimeoutMS int    `json:"read_timeout_ms,omitempty"`
}

// -----------------------------------------------------------------------------
// Service
// -----------------------------------------------------------------------------

// Start serves the bridge until ctx is cancelled. Each config/bridge message
// replaces the running link.
func Start(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfig)
	defer conn.Unsubscribe(cfgSub)

	s := &service{conn: conn}
	s.publishState(types.LinkIdle, "awaiting_config", nil, 0)

	cancel := context.CancelFunc(func() {})
	defer func() { cancel() }()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				return
			}
			var cfg Config
			if err := types.Decode(msg.Payload, &cfg); err != nil {
				s.publishState(types.LinkError, "config_decode_failed", err, 0)
				continue
			}
			cancel()
			var lctx context.Context
			lctx, cancel = context.WithCancel(ctx)
			go (&service{conn: conn}).supervise(lctx, cfg)
		}
	}
}

// service publishes state for one configured link.
type service struct {
	conn      *bus.Connection
	transport string
}

// supervise keeps one link open, redialling with backoff after failures.
// A link closed by the host is not reopened until new config arrives.
func (s *service) supervise(ctx context.Context, cfg Config) {
	tr, err := newTransport(cfg.Transport)
	if err != nil {
		s.publishState(types.LinkError, "transport_init_failed", err, 0)
		return
	}
	s.transport = tr.String()

	retry := retryMin
	for ctx.Err() == nil {
		rwc, err := tr.Open(ctx)
		why := "dial_failed_retrying"
		if err == nil {
			retry = retryMin
			s.publishState(types.LinkUp, "link_established", nil, 0)
			err = s.serveLink(ctx, rwc, cfg)
			_ = rwc.Close()
			if err == nil {
				if ctx.Err() == nil {
					s.publishState(types.LinkIdle, "closed_by_host", nil, 0)
				}
				return
			}
			why = "link_lost_retrying"
		}
		if ctx.Err() != nil {
			return
		}
		s.publishState(types.LinkDegraded, why, err, retry)
		if !wait(ctx, retry) {
			return
		}
		retry = mathx.Min(retry*2, retryMax)
	}
}

// serveLink runs one link until it fails, the host closes it or ctx ends.
// Requests are served one at a time in arrival order; selected publications
// are forwarded between them.
func (s *service) serveLink(parent context.Context, rwc io.ReadWriteCloser, cfg Config) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	wr := newFramedWriter(rwc)

	pubs := make(chan *bus.Message, 8)
	for _, t := range cfg.forward() {
		sub := s.conn.Subscribe(t)
		defer s.conn.Unsubscribe(sub)
		go func() {
			for m := range sub.Channel() {
				select {
				case pubs <- m:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	reqs := make(chan request, 4)
	readErr := make(chan error, 1)
	go func() {
		readErr <- readLink(ctx, newFramedReader(rwc), wr, reqs)
	}()

	ping := time.NewTicker(pingEvery)
	defer ping.Stop()

	timeout := cfg.requestTimeout()
	for {
		var err error
		select {
		case <-parent.Done():
			_ = wr.WriteFrame(Frame{Type: frameClose})
			return nil
		case err = <-readErr:
			return err
		case r := <-reqs:
			err = wr.writeJSON(frameReply, s.call(ctx, r, timeout))
		case m := <-pubs:
			err = s.publish(wr, m)
		case <-ping.C:
			err = wr.WriteFrame(Frame{Type: framePing})
		}
		if err != nil {
			return err
		}
	}
}

// readLink decodes host frames: pings are answered in place and requests
// queued. It returns nil when the host sends close.
func readLink(ctx context.Context, rd *framedReader, wr *framedWriter, reqs chan<- request) error {
	for {
		f, err := rd.ReadFrame()
		if err != nil {
			return err
		}
		switch f.Type {
		case framePing:
			if err := wr.WriteFrame(Frame{Type: framePong}); err != nil {
				return err
			}
		case frameReq:
			r, ok := decodeRequest(f.Payload)
			if !ok {
				continue // no id, nobody to answer
			}
			select {
			case reqs <- r:
			case <-ctx.Done():
				return nil
			}
		case frameClose:
			return nil
		}
	}
}

// call forwards one host request to rf/<op> and wraps the answer.
func (s *service) call(ctx context.Context, r request, timeout time.Duration) reply {
	if r.Op == "" {
		return errorReply(r.ID, errcode.New(errcode.InvalidTopic, "bridge", "empty op"))
	}
	var payload any
	if len(r.Payload) > 0 {
		payload = []byte(r.Payload)
	}
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	resp, err := s.conn.RequestWait(rctx, s.conn.NewMessage(bus.T("rf", r.Op), payload, false))
	if err != nil {
		return errorReply(r.ID, errcode.Wrap(errcode.Timeout, "bridge."+r.Op, err))
	}
	b, err := json.Marshal(resp.Payload)
	if err != nil {
		return errorReply(r.ID, errcode.Wrap(errcode.Error, "bridge."+r.Op, err))
	}
	return reply{ID: r.ID, Payload: b}
}

func (s *service) publish(wr *framedWriter, m *bus.Message) error {
	b, err := json.Marshal(m.Payload)
	if err != nil {
		println("[bridge] drop", m.Topic.String(), err.Error())
		return nil
	}
	return wr.writeJSON(framePub, publication{Topic: m.Topic.String(), Payload: b})
}

func (s *service) publishState(level types.LinkLevel, status string, err error, retry time.Duration) {
	st := types.BridgeState{
		Level:     level,
		Status:    status,
		Transport: s.transport,
		RetryMS:   retry.Milliseconds(),
		TS:        time.Now().UnixMilli(),
	}
	if err != nil {
		st.Error = err.Error()
		println("[bridge]", status, st.Error)
	}
	s.conn.Publish(s.conn.NewMessage(topicState, st, true))
}

// -----------------------------------------------------------------------------
// Transports
// -----------------------------------------------------------------------------

// Transport opens the byte link.
type Transport interface {
	Open(ctx context.Context) (io.ReadWriteCloser, error)
	String() string
}

// transports is filled from package init functions only.
var transports = map[string]func(TransportConfig) (Transport, error){
	"uart": newUARTTransport,
}

// RegisterTransport adds a transport type. Call it from init.
func RegisterTransport(name string, f func(TransportConfig) (Transport, error)) {
	transports[name] = f
}

func newTransport(cfg TransportConfig) (Transport, error) {
	f, ok := transports[cfg.Type]
	if !ok {
		return nil, errcode.New(errcode.Unsupported, "bridge", "unknown transport type "+cfg.Type)
	}
	return f(cfg)
}

// UARTDial is set by firmware to open the configured UART.
var UARTDial func(ctx context.Context, u UARTConfig) (io.ReadWriteCloser, error)

type uartTransport struct{ cfg UARTConfig }

func newUARTTransport(cfg TransportConfig) (Transport, error) {
	if cfg.UART == nil {
		return nil, errcode.New(errcode.InvalidParams, "bridge", "uart transport requires uart config")
	}
	return &uartTransport{cfg: *cfg.UART}, nil
}

func (u *uartTransport) Open(ctx context.Context) (io.ReadWriteCloser, error) {
	if UARTDial == nil {
		return nil, errcode.New(errcode.NotReady, "bridge", "no uart dialler")
	}
	return UARTDial(ctx, u.cfg)
}

func (u *uartTransport) String() string { return "uart" }

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// parsePattern turns "rf/event/#" into a bus topic.
func parsePattern(p string) bus.Topic {
	var t bus.Topic
	start := 0
	for i := 0; i <= len(p); i++ {
		if i == len(p) || p[i] == '/' {
			t = append(t, p[start:i])
			start = i + 1
		}
	}
	return t
}

func wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
