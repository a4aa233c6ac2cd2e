// Package money holds the settlement arithmetic: fee splits, discounts and
// the platform fee default. Pure functions, amounts in decimal currency units
// rounded to cents.
package money

import "math"

// DefaultFeePercent is the platform fee applied when a gig carries no fee
// percent of its own. Every fee-percent read goes through EffectiveFeePercent
// so an unset value is never silently treated as a zero fee.
const DefaultFeePercent = 0.065

// DiscountType selects how a discount is applied.
type DiscountType string

const (
	DiscountFixed      DiscountType = "FIXED"
	DiscountPercentage DiscountType = "PERCENTAGE"
)

// Discount reduces an amount either by a fixed sum or by a percentage.
type Discount struct {
	Type       DiscountType
	Amount     float64
	Percentage float64
}

// Round2 rounds to the smallest currency unit, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Cents converts a decimal amount to integer cents for processor calls.
func Cents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// EffectiveFeePercent returns the fee percent to charge, falling back to
// DefaultFeePercent when the stored value is absent or zero.
func EffectiveFeePercent(p float64) float64 {
	if p <= 0 {
		return DefaultFeePercent
	}
	return p
}

// FeeSplit splits a captured amount into the platform fee and the worker net.
// fee + net always equals the input amount.
func FeeSplit(amountToCapture, feePercent float64) (fee, netToWorker float64) {
	fee = Round2(amountToCapture * feePercent)
	netToWorker = Round2(amountToCapture - fee)
	return fee, netToWorker
}

// ApplyDiscount applies a discount to an amount. A nil discount is a no-op.
// Fixed discounts floor at zero.
func ApplyDiscount(amount float64, d *Discount) float64 {
	if d == nil {
		return amount
	}
	switch d.Type {
	case DiscountFixed:
		adjusted := Round2(amount - d.Amount)
		if adjusted < 0 {
			return 0
		}
		return adjusted
	case DiscountPercentage:
		return Round2(amount - amount*d.Percentage/100)
	default:
		return amount
	}
}
