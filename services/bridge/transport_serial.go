//go:build !rp2040 && !rp2350

package bridge

import (
	"context"
	"io"
	"time"

	"github.com/tarm/serial"

	"rf433-go/errcode"
)

func init() {
	RegisterTransport("serial", newSerialTransport)
}

type serialTransport struct {
	cfg SerialConfig
}

func newSerialTransport(cfg TransportConfig) (Transport, error) {
	if cfg.Serial == nil || cfg.Serial.Port == "" {
		return nil, errcode.New(errcode.InvalidParams, "bridge", "serial transport requires a port")
	}
	return &serialTransport{cfg: *cfg.Serial}, nil
}

func (s *serialTransport) Open(context.Context) (io.ReadWriteCloser, error) {
	return OpenSerial(s.cfg)
}

func (s *serialTransport) String() string { return "serial:" + s.cfg.Port }

// OpenSerial opens a host serial port for framed traffic. A zero read
// timeout blocks until data arrives.
func OpenSerial(c SerialConfig) (io.ReadWriteCloser, error) {
	baud := c.Baud
	if baud <= 0 {
		baud = 115200
	}
	p, err := serial.OpenPort(&serial.Config{
		Name:        c.Port,
		Baud:        baud,
		ReadTimeout: time.Duration(c.ReadTimeoutMS) * time.Millisecond,
	})
	if err != nil {
		return nil, errcode.Wrap(errcode.NotReady, "bridge.serial", err)
	}
	return p, nil
}
