package bridge

import (
	"encoding/json"
	"io"
	"strconv"
	"sync"

	"rf433-go/errcode"
)

// Frame types on the link.
const (
	framePing  byte = 0x01
	framePong  byte = 0x02
	framePub   byte = 0x10 // device -> host publication
	frameReq   byte = 0x20 // host -> device request
	frameReply byte = 0x21 // device -> host reply
	frameClose byte = 0x7f
)

// maxPayload is bounded by the 16-bit length field.
const maxPayload = 0xFFFF

// Frame is a length-prefixed frame: type, length MSB, length LSB, payload.
type Frame struct {
	Type    byte
	Payload []byte
}

type framedReader struct{ r io.Reader }

// framedWriter serialises frames from several goroutines.
type framedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func newFramedReader(r io.Reader) *framedReader { return &framedReader{r: r} }
func newFramedWriter(w io.Writer) *framedWriter { return &framedWriter{w: w} }

func (fr *framedReader) ReadFrame() (Frame, error) {
	var hdr [3]byte
	if _, err := io.ReadFull(fr.r, hdr[:]); err != nil {
		return Frame{}, err
	}
	n := int(hdr[1])<<8 | int(hdr[2])
	var buf []byte
	if n > 0 {
		buf = make([]byte, n)
		if _, err := io.ReadFull(fr.r, buf); err != nil {
			return Frame{}, err
		}
	}
	return Frame{Type: hdr[0], Payload: buf}, nil
}

func (fw *framedWriter) WriteFrame(f Frame) error {
	if len(f.Payload) > maxPayload {
		return errcode.New(errcode.InvalidParams, "bridge.write", "frame too large: "+strconv.Itoa(len(f.Payload)))
	}
	b := make([]byte, 3+len(f.Payload))
	b[0], b[1], b[2] = f.Type, byte(len(f.Payload)>>8), byte(len(f.Payload))
	copy(b[3:], f.Payload)

	fw.mu.Lock()
	defer fw.mu.Unlock()
	_, err := fw.w.Write(b)
	return err
}

// writeJSON encodes v as the payload of a frame of type typ.
func (fw *framedWriter) writeJSON(typ byte, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return fw.WriteFrame(Frame{Type: typ, Payload: b})
}

// ---- Envelopes ----

// request is a frameReq payload: an rf op and its JSON body.
type request struct {
	ID      uint32          `json:"id"`
	Op      string          `json:"op"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// reply is a frameReply payload.
type reply struct {
	ID      uint32          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// publication is a framePub payload.
type publication struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// status is the common head of every rf reply.
type status struct {
	OK    bool   `json:"ok"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

// decodeRequest rejects payloads without a usable id; ids start at 1.
func decodeRequest(b []byte) (request, bool) {
	var r request
	if err := json.Unmarshal(b, &r); err != nil || r.ID == 0 {
		return r, false
	}
	return r, true
}

func errorReply(id uint32, err error) reply {
	b, _ := json.Marshal(status{Code: string(errcode.Of(err)), Error: err.Error()})
	return reply{ID: id, Payload: b}
}
