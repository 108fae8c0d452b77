//go:build rp2040 || rp2350

package main

import (
	"context"
	"runtime"
	"time"

	"rf433-go/bus"
	"rf433-go/services/bridge"
	"rf433-go/services/config"
	"rf433-go/services/heartbeat"
	"rf433-go/services/rf"
	"rf433-go/types"
)

const board = "pico"

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(3 * time.Second)
	ctx := context.Background()

	println("[main] bootstrapping bus …")
	b := bus.NewBus(8)
	uiConn := b.NewConnection("ui")

	mon := uiConn.Subscribe(bus.T("rf", "#"))
	go func() {
		for m := range mon.Channel() {
			switch p := m.Payload.(type) {
			case types.RFState:
				println("[monitor]", m.Topic.String(), string(p.Level), p.Status, p.Error)
			case types.LearnReport:
				println("[monitor]", m.Topic.String(), p.Key, "frames", p.Averaged, "len", p.FrameLen)
			default:
				println("[monitor]", m.Topic.String())
			}
		}
	}()

	println("[main] starting services …")
	go rf.Run(ctx, b.NewConnection("rf"))
	bridge.UARTDial = dialUART
	go bridge.Start(ctx, b.NewConnection("bridge"))
	hb := &heartbeat.Service{}
	_ = hb.Start(ctx, b.NewConnection("heartbeat"))
	config.NewConfigService().Start(config.WithDevice(ctx, board), b.NewConnection("config"))

	for {
		time.Sleep(30 * time.Second)
		printMem()
	}
}

// printMem prints a compact snapshot of TinyGo runtime memory stats.
func printMem() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	println(
		"[mem]",
		"alloc:", uint32(ms.Alloc),
		"heapInuse:", uint32(ms.HeapInuse),
		"mallocs:", uint32(ms.Mallocs),
		"frees:", uint32(ms.Frees),
	)
}
