//go:build rp2040 || rp2350

package main

import (
	"context"
	"io"
	"machine"
	"time"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"

	"rf433-go/errcode"
	"rf433-go/services/bridge"
)

// uartLink adapts a uartx port to a blocking io.ReadWriteCloser.
type uartLink struct {
	ctx context.Context
	u   *uartx.UART
}

func (l *uartLink) Read(p []byte) (int, error) {
	for {
		if l.ctx.Err() != nil {
			return 0, io.EOF
		}
		// Bounded waits so a cancelled link is noticed.
		rctx, cancel := context.WithTimeout(l.ctx, 250*time.Millisecond)
		n, _ := l.u.RecvSomeContext(rctx, p)
		cancel()
		if n > 0 {
			return n, nil
		}
	}
}

func (l *uartLink) Write(p []byte) (int, error) { return l.u.Write(p) }
func (l *uartLink) Close() error                { return nil }

func dialUART(ctx context.Context, c bridge.UARTConfig) (io.ReadWriteCloser, error) {
	u := uartx.UART1
	if err := u.Configure(uartx.UARTConfig{
		BaudRate: uint32(c.Baud),
		TX:       machine.Pin(c.TxPin),
		RX:       machine.Pin(c.RxPin),
	}); err != nil {
		return nil, errcode.Wrap(errcode.NotReady, "uart1", err)
	}
	return &uartLink{ctx: ctx, u: u}, nil
}
