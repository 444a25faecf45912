package smartbin

import "math"

// Fullness converts a lid-to-waste distance into a fill percentage of a
// compartment of the given height, clamped to [0, 100] and rounded to two
// decimals.
func Fullness(height, distance float64) float64 {
	if height <= 0 || math.IsNaN(distance) {
		return 0
	}
	pct := (height - distance) / height * 100
	pct = math.Max(0, math.Min(100, pct))
	return math.Round(pct*100) / 100
}
