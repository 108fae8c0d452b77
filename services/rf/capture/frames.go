package capture

import (
	"math"

	"rf433-go/x/mathx"
	"rf433-go/x/timex"
)

// Gaps fills out with successive differences of times and returns it.
// Only len(times)-2 gaps are produced: the final edge pair is dropped.
func Gaps(out, times []uint32) []uint32 {
	out = out[:0]
	for x := 0; x+2 < len(times); x++ {
		out = append(out, timex.Since(times[x+1], times[x]))
	}
	return out
}

// Threshold is the minimum gap length treated as a frame boundary:
// tolerance times the longest gap, rounded half to even.
func Threshold(gaps []uint32, tolerance float64) uint32 {
	return uint32(math.RoundToEven(float64(mathx.MaxOf(gaps)) * tolerance))
}

// Segment splits gaps into frames, each ending with its boundary gap.
// Everything up to and including the first boundary is discarded, as is a
// trailing frame that never reached a boundary. The returned frames alias gaps.
func Segment(gaps []uint32, threshold uint32) [][]uint32 {
	i := 0
	for i < len(gaps) && gaps[i] < threshold {
		i++
	}
	if i == len(gaps) {
		return nil
	}
	i++ // drop the first boundary too

	var frames [][]uint32
	start := i
	for ; i < len(gaps); i++ {
		if gaps[i] >= threshold {
			frames = append(frames, gaps[start:i+1:i+1])
			start = i + 1
		}
	}
	return frames
}

// Modal returns the most common frame length. Ties go to the length seen first.
func Modal(frames [][]uint32) (length, count int) {
	counts := make(map[int]int, 4)
	for _, f := range frames {
		counts[len(f)]++
	}
	for _, f := range frames {
		if c := counts[len(f)]; c > count {
			length, count = len(f), c
		}
	}
	return length, count
}

// Filter keeps only frames of the given length, in order.
func Filter(frames [][]uint32, length int) [][]uint32 {
	out := frames[:0:0]
	for _, f := range frames {
		if len(f) == length {
			out = append(out, f)
		}
	}
	return out
}

// Average returns the per-position rounded mean of equal-length frames and
// the mean of the per-position population standard deviations.
func Average(frames [][]uint32) (mean []uint32, quality float64) {
	if len(frames) == 0 {
		return nil, 0
	}
	n := float64(len(frames))
	width := len(frames[0])
	mean = make([]uint32, width)
	var sdSum float64
	for i := 0; i < width; i++ {
		var sum float64
		for _, f := range frames {
			sum += float64(f[i])
		}
		m := sum / n
		mean[i] = uint32(math.RoundToEven(m))

		var sq float64
		for _, f := range frames {
			d := float64(f[i]) - m
			sq += d * d
		}
		sdSum += math.Sqrt(sq / n)
	}
	return mean, sdSum / float64(width)
}
