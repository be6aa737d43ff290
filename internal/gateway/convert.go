package gateway

import "github.com/shopspring/decimal"

// scaleAmount converts a float quantity to the exchange's integer
// representation at the given precision, truncating toward zero. Truncation
// keeps us from ever submitting more than the sizer allowed.
func scaleAmount(v float64, decimals int) int64 {
	return decimal.NewFromFloat(v).
		Shift(int32(decimals)).
		Truncate(0).
		IntPart()
}
