package timex

import "time"

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// Diff returns a-b for microsecond tick counts that wrap at 2^32.
// The result is correct as long as the true interval is under ~35 minutes.
func Diff(a, b uint32) int32 { return int32(a - b) }

// Since returns the elapsed ticks from start to now, clamped at zero.
func Since(now, start uint32) uint32 {
	d := Diff(now, start)
	if d < 0 {
		return 0
	}
	return uint32(d)
}

// US converts a microsecond count to a time.Duration.
func US(us uint32) time.Duration { return time.Duration(us) * time.Microsecond }

// Micros is any free-running microsecond counter.
type Micros interface {
	NowUS() uint32
}

// Spin busy-waits on c for us microseconds.
func Spin(c Micros, us uint32) {
	start := c.NowUS()
	for Since(c.NowUS(), start) < us {
	}
}
