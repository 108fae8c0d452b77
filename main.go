package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"rf433-go/bus"
	"rf433-go/services/bridge"
	"rf433-go/services/config"
	"rf433-go/services/heartbeat"
	"rf433-go/services/rf"
	"rf433-go/types"
)

// Host build of the firmware: the same services on fake pins, useful for
// exercising the bus surface. RF_CONFIG names a JSON file that replaces the
// embedded host config; its "bridge" section may point the serial bridge at
// a host port.
func main() {
	println("boot")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	b := bus.NewBus(8)
	ui := b.NewConnection("ui")
	status := ui.Subscribe(bus.T("rf", "status"))

	go rf.Run(ctx, b.NewConnection("rf"))
	go bridge.Start(ctx, b.NewConnection("bridge"))
	hb := &heartbeat.Service{}
	_ = hb.Start(ctx, b.NewConnection("heartbeat"))

	if path := os.Getenv("RF_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err == nil {
			err = config.Publish(b.NewConnection("config"), raw)
		}
		if err != nil {
			println("[main] config: " + err.Error())
			return
		}
	} else {
		config.NewConfigService().Start(config.WithDevice(ctx, "host"), b.NewConnection("config"))
	}

	for {
		select {
		case <-ctx.Done():
			// Give services a moment to publish their final state.
			time.Sleep(50 * time.Millisecond)
			return
		case m := <-status.Channel():
			if st, ok := m.Payload.(types.RFState); ok {
				println("[main] rf", string(st.Level), st.Status, "keys", st.Keys, st.Error)
			}
		}
	}
}
