// Package sizing provides overflow-safe arithmetic for cache byte counts.
package sizing

// AddUint64 adds two uint64 values, returning (result, false) on overflow.
func AddUint64(a, b uint64) (uint64, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}

// SubClamp returns a-b, or 0 when b > a.
// Recorded sizes can lag behind the directory when entries vanish externally.
func SubClamp(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// Exceeds reports whether used+need is over limit.
// A zero limit means unlimited. An overflowing sum always exceeds.
func Exceeds(used, need, limit uint64) bool {
	if limit == 0 {
		return false
	}
	sum, ok := AddUint64(used, need)
	if !ok {
		return true
	}
	return sum > limit
}

// FromInt64 converts a file size to uint64, treating negative sizes as zero.
func FromInt64(n int64) uint64 {
	if n < 0 {
		return 0
	}
	return uint64(n)
}
