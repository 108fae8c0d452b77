// Package mathx holds small generic helpers for pulse-length arithmetic.
package mathx

import "golang.org/x/exp/constraints"

func Max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

func Min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

// Sum adds xs into a uint64 so long pulse trains cannot overflow the element type.
func Sum[T constraints.Unsigned](xs []T) uint64 {
	var s uint64
	for _, x := range xs {
		s += uint64(x)
	}
	return s
}

// MaxOf returns the largest element of xs, or the zero value when xs is empty.
func MaxOf[T constraints.Ordered](xs []T) T {
	var m T
	for i, x := range xs {
		if i == 0 || x > m {
			m = x
		}
	}
	return m
}
