package config

import (
	"context"
	"testing"
	"time"

	"rf433-go/bus"
	"rf433-go/errcode"
	"rf433-go/types"
)

func TestStartPublishesOneRetainedMessagePerSection(t *testing.T) {
	old := EmbeddedConfigLookup
	EmbeddedConfigLookup = func(device string) ([]byte, bool) {
		if device != "bench" {
			return nil, false
		}
		return []byte(`{"rf":{"board":"pico","reps":3},"heartbeat":{"interval":2},"debug":true}`), true
	}
	t.Cleanup(func() { EmbeddedConfigLookup = old })

	b := bus.NewBus(16)
	conn := b.NewConnection("test-config")
	NewConfigService().Start(WithDevice(context.Background(), "bench"), conn)

	// Retained, so a late subscriber still sees every section.
	sub := conn.Subscribe(bus.T(configPrefix, "+"))
	got := map[string]any{}
	deadline := time.After(time.Second)
	for len(got) < 3 {
		select {
		case m := <-sub.Channel():
			if !m.Retained || len(m.Topic) != 2 {
				t.Fatalf("unexpected message on %s (retained=%v)", m.Topic, m.Retained)
			}
			got[m.Topic[1].(string)] = m.Payload
		case <-deadline:
			t.Fatalf("got %d sections, want 3: %v", len(got), got)
		}
	}

	var rf types.RFConfig
	if err := types.Decode(got["rf"], &rf); err != nil || rf.Board != "pico" || rf.Reps != 3 {
		t.Fatalf("rf section = %#v (%v)", got["rf"], err)
	}
	var hb types.HeartbeatConfig
	if err := types.Decode(got["heartbeat"], &hb); err != nil || hb.Interval != 2 {
		t.Fatalf("heartbeat section = %#v (%v)", got["heartbeat"], err)
	}
	if got["debug"] != true {
		t.Fatalf("debug section = %#v", got["debug"])
	}
}

func TestConfig_PublishConfig_MissingDevice(t *testing.T) {
	b := bus.NewBus(4)
	conn := b.NewConnection("test-missing-device")
	svc := NewConfigService()

	// No device ID in context
	if err := svc.publishConfig(context.Background(), conn); err == nil {
		t.Fatal("expected error for missing device ID, got nil")
	}
}

func TestConfig_PublishConfig_NoConfigFound(t *testing.T) {
	// Override lookup to simulate absence.
	oldLookup := EmbeddedConfigLookup
	EmbeddedConfigLookup = func(device string) ([]byte, bool) { return nil, false }
	t.Cleanup(func() { EmbeddedConfigLookup = oldLookup })

	b := bus.NewBus(4)
	conn := b.NewConnection("test-no-config")
	svc := NewConfigService()

	ctx := WithDevice(context.Background(), "unknown-device")
	if err := svc.publishConfig(ctx, conn); errcode.Of(err) != errcode.UnsupportedPlatform {
		t.Fatalf("expected unsupported_platform for missing embedded config, got %v", err)
	}
}

func TestPublishRejectsNonObject(t *testing.T) {
	conn := bus.NewBus(4).NewConnection("test")
	for _, raw := range []string{`[1,2]`, `null`, `{`} {
		if err := Publish(conn, []byte(raw)); errcode.Of(err) != errcode.InvalidParams {
			t.Fatalf("Publish(%s) = %v", raw, err)
		}
	}
}

func TestEmbeddedConfigsAreValid(t *testing.T) {
	for board, raw := range embeddedConfigs {
		b := bus.NewBus(8)
		conn := b.NewConnection("test")
		if err := Publish(conn, raw); err != nil {
			t.Fatalf("%s: %v", board, err)
		}
		sub := conn.Subscribe(bus.T(configPrefix, "rf"))
		select {
		case m := <-sub.Channel():
			var rf types.RFConfig
			if err := types.Decode(m.Payload, &rf); err != nil {
				t.Fatalf("%s: rf payload %T: %v", board, m.Payload, err)
			}
			// The only generator on these boards spins on the CPU.
			if rf.Strategy == "generator" {
				t.Fatalf("%s: defaults to the generator strategy", board)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("%s: no retained rf config", board)
		}
	}
}
