package utils

import "math"

// DollarsToCents converts a decimal dollar price to integer cents using
// round-half-away-from-zero, i.e. round(price * 100). Prices are stored in
// dollars and only converted at the payment boundary.
func DollarsToCents(price float64) int64 {
	return int64(math.Round(price * 100))
}
