// Package utils provides shared utility functions.
package utils

import "math"

// RoundToTick rounds a price to the instrument's tick size. A zero or
// negative tick returns the price unchanged.
func RoundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	return math.Round(price/tick) * tick
}

// ClampShares bounds a share count to [min, max]. Zero bounds are ignored.
func ClampShares(shares, min, max int) int {
	if min > 0 && shares < min {
		return min
	}
	if max > 0 && shares > max {
		return max
	}
	return shares
}

// AbsInt returns the absolute value of an int.
func AbsInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
