package domain

import (
	catalogdomain "github.com/smallbiznis/deskflow/internal/catalog/domain"
)

// CalculateTieredCharge converts a usage quantity into a charge by walking
// the tier table in ascending order. Each tier bills the units it covers at
// its own unit price; a zero unit price is a free allotment. The table must
// satisfy the catalog tier invariant or ErrInvalidTierTable propagates.
func CalculateTieredCharge(quantity int64, tiers []catalogdomain.PriceTier) (int64, error) {
	if err := catalogdomain.ValidateTierTable(tiers); err != nil {
		return 0, err
	}
	if quantity <= 0 {
		return 0, nil
	}

	var total int64
	var lowerBound int64
	remaining := quantity
	for _, tier := range tiers {
		if remaining == 0 {
			break
		}
		var capacity int64
		if tier.UpTo == nil {
			capacity = remaining
		} else {
			capacity = *tier.UpTo - lowerBound
			lowerBound = *tier.UpTo
		}
		consumed := remaining
		if capacity < consumed {
			consumed = capacity
		}
		total += consumed * tier.UnitPriceCents
		remaining -= consumed
	}
	return total, nil
}
