package playback

import (
	"strconv"

	"rf433-go/errcode"
)

// Buffer holds one sentinel-terminated pulse list. It is sized once, outside
// the timing path, and refilled in place for each transmission.
type Buffer struct {
	d []uint32
	n int // filled length including the sentinel
}

// Size returns the entries needed to play a code of maxLen durations reps
// times. A natively looping backend only ever holds one copy.
func Size(maxLen, reps int, nativeLoop bool) int {
	if nativeLoop || reps < 1 {
		reps = 1
	}
	return maxLen*reps + 1
}

func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{d: make([]uint32, capacity)}
}

func (b *Buffer) Cap() int { return len(b.d) }

// Grow replaces the backing array when capacity exceeds the current one.
func (b *Buffer) Grow(capacity int) {
	if capacity > len(b.d) {
		b.d = make([]uint32, capacity)
		b.n = 0
	}
}

// Fill writes reps copies of code followed by the 0 sentinel and returns the
// filled view.
func (b *Buffer) Fill(code []uint32, reps int) ([]uint32, error) {
	if len(code) == 0 || reps < 1 {
		return nil, errcode.InvalidParams
	}
	need := len(code)*reps + 1
	if need > len(b.d) {
		return nil, errcode.New(errcode.BufferTooSmall, "fill",
			"need "+strconv.Itoa(need)+", have "+strconv.Itoa(len(b.d)))
	}
	i := 0
	for r := 0; r < reps; r++ {
		i += copy(b.d[i:], code)
	}
	b.d[i] = 0
	b.n = i + 1
	return b.d[:b.n:b.n], nil
}

// Pulses returns the last filled view, sentinel included.
func (b *Buffer) Pulses() []uint32 { return b.d[:b.n:b.n] }
