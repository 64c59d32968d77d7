// Package bounded implements saturating arithmetic over unsigned ranges.
// Results never wrap around: a sum stops at its ceiling and a difference
// stops at its floor.
package bounded

// Unsigned is the set of integer types accepted by Add, Sub and Clamp.
type Unsigned interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Add returns a+delta, saturating at hi.
func Add[T Unsigned](a, delta, hi T) T {
	if delta > hi || a > hi-delta {
		return hi
	}
	return a + delta
}

// Sub returns a-delta, saturating at lo.
func Sub[T Unsigned](a, delta, lo T) T {
	if a < delta || a-delta < lo {
		return lo
	}
	return a - delta
}

// Clamp bounds v to [lo, hi].
func Clamp[T Unsigned](v, lo, hi T) T {
	return min(max(v, lo), hi)
}
