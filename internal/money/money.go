// Package money holds integer-cent arithmetic shared by pricing and invoicing.
// Amounts are always minor currency units; floating point never enters a charge.
package money

// DivRoundHalfUp divides two amounts in cents and rounds half-up to the
// nearest cent. Both arguments must be non-negative and the denominator
// must be positive; every division on a monetary amount routes through
// this so repeated computations stay reproducible.
func DivRoundHalfUp(numerator, denominator int64) int64 {
	if denominator <= 0 {
		return 0
	}
	if numerator < 0 {
		return 0
	}
	return (numerator + denominator/2) / denominator
}

// MonthlyEquivalent converts a yearly amount to its monthly equivalent
// using the round-half-up rule. Used to normalize MRR for yearly cycles.
func MonthlyEquivalent(yearlyCents int64) int64 {
	return DivRoundHalfUp(yearlyCents, 12)
}

// PercentOff returns amount reduced by percent, floored at zero.
// The discounted amount is floor(amount * (100 - percent) / 100).
func PercentOff(amountCents, percent int64) int64 {
	if amountCents <= 0 {
		return 0
	}
	if percent >= 100 {
		return 0
	}
	if percent <= 0 {
		return amountCents
	}
	return amountCents * (100 - percent) / 100
}

// FixedOff subtracts a fixed discount, floored at zero.
func FixedOff(amountCents, discountCents int64) int64 {
	if discountCents <= 0 {
		return amountCents
	}
	result := amountCents - discountCents
	if result < 0 {
		return 0
	}
	return result
}
