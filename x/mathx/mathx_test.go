package mathx

import "testing"

func TestMinMax(t *testing.T) {
	if Max(3, 7) != 7 || Max(-1, -4) != -1 || Min(3, 7) != 3 {
		t.Fatal("Min/Max")
	}
}

func TestSumAndMaxOf(t *testing.T) {
	xs := []uint32{4000000000, 4000000000}
	if got := Sum(xs); got != 8000000000 {
		t.Fatalf("Sum = %d", got)
	}
	if MaxOf([]uint32{3, 9, 2}) != 9 {
		t.Fatal("MaxOf")
	}
	if MaxOf[uint32](nil) != 0 {
		t.Fatal("MaxOf(nil)")
	}
}
