package bridge

import (
	"encoding/json"
	"io"
	"sync"

	"rf433-go/errcode"
)

// Client drives a remote bridge over rw. Calls are serialised; frames that
// arrive between replies are dispatched to Events or answered (pings).
type Client struct {
	rd *framedReader
	wr *framedWriter

	mu  sync.Mutex
	seq uint32

	// Events, when set, receives publications forwarded by the device.
	Events func(topic string, payload json.RawMessage)
}

func NewClient(rw io.ReadWriter) *Client {
	return &Client{rd: newFramedReader(rw), wr: newFramedWriter(rw)}
}

// Call sends op with payload (any JSON-encodable value, or nil) and decodes
// the reply into out. A reply carrying ok:false comes back as an *errcode.E.
func (c *Client) Call(op string, payload any, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	req := request{ID: c.seq, Op: op}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return errcode.Wrap(errcode.InvalidParams, op, err)
		}
		req.Payload = b
	}
	if err := c.wr.writeJSON(frameReq, req); err != nil {
		return err
	}

	for {
		f, err := c.rd.ReadFrame()
		if err != nil {
			return err
		}
		switch f.Type {
		case framePing:
			if err := c.wr.WriteFrame(Frame{Type: framePong}); err != nil {
				return err
			}
		case framePub:
			if c.Events == nil {
				continue
			}
			var p publication
			if json.Unmarshal(f.Payload, &p) == nil {
				c.Events(p.Topic, p.Payload)
			}
		case frameClose:
			return errcode.New(errcode.NotReady, op, "link closed by device")
		case frameReply:
			var r reply
			if err := json.Unmarshal(f.Payload, &r); err != nil {
				return errcode.Wrap(errcode.Error, op, err)
			}
			if r.ID != req.ID {
				// Stale answer to an abandoned call.
				continue
			}
			var st status
			if err := json.Unmarshal(r.Payload, &st); err == nil && !st.OK && st.Code != "" {
				return errcode.New(errcode.Code(st.Code), op, st.Error)
			}
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(r.Payload, out); err != nil {
				return errcode.Wrap(errcode.Error, op, err)
			}
			return nil
		}
	}
}

// Close tells the device the host is going away.
func (c *Client) Close() error {
	return c.wr.WriteFrame(Frame{Type: frameClose})
}
