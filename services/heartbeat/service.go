package heartbeat

import (
	"context"
	"time"

	"rf433-go/bus"
	"rf433-go/types"
)

var (
	topicConfigHeartbeat = bus.T("config", "heartbeat")
	topicHeartbeat       = bus.T("sys", "heartbeat")
)

const defaultInterval = time.Second

type Service struct {
	start time.Time
	seq   uint32
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)

	tick := time.NewTicker(defaultInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			println("[heartbeat] stopping")
			return
		case now := <-tick.C:
			s.beat(conn, now)
		case msg := <-cfgSub.Channel():
			if iv, ok := interval(msg.Payload); ok {
				tick.Reset(iv)
				println("[heartbeat] interval", iv.String())
			}
		}
	}
}

func (s *Service) beat(conn *bus.Connection, now time.Time) {
	s.seq++
	hb := types.Heartbeat{Seq: s.seq, Uptime: int64(now.Sub(s.start) / time.Second)}
	conn.Publish(conn.NewMessage(topicHeartbeat, hb, true))
}

// interval extracts a positive period from a config/heartbeat payload.
func interval(p any) (time.Duration, bool) {
	var cfg types.HeartbeatConfig
	if err := types.Decode(p, &cfg); err != nil || cfg.Interval <= 0 {
		return 0, false
	}
	return time.Duration(cfg.Interval * float64(time.Second)), true
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	s.start = time.Now()
	go s.serviceLoop(ctx, conn)
	return nil
}
