package types

import "testing"

func TestDecodeAcceptsEveryPayloadShape(t *testing.T) {
	want := SendReq{Key: "door", Blocking: true}
	for _, src := range []any{
		want,
		&want,
		[]byte(`{"key":"door","blocking":true}`),
		`{"key":"door","blocking":true}`,
		map[string]any{"key": "door", "blocking": true},
	} {
		var got SendReq
		if err := Decode(src, &got); err != nil {
			t.Fatalf("Decode(%T): %v", src, err)
		}
		if got != want {
			t.Fatalf("Decode(%T) = %+v", src, got)
		}
	}

	got := HeartbeatConfig{Interval: 3}
	if err := Decode(nil, &got); err != nil || got.Interval != 3 {
		t.Fatalf("nil payload changed dst: %+v, %v", got, err)
	}
	if err := Decode(`{"interval":`, &got); err == nil {
		t.Fatal("truncated JSON accepted")
	}
}
