package domain

// ValidateTierTable checks the tier table invariant: tiers sorted ascending
// by upper bound, exactly one unbounded tier, and the unbounded tier last.
// A broken table is catalog corruption, not a caller mistake.
func ValidateTierTable(tiers []PriceTier) error {
	if len(tiers) == 0 {
		return ErrInvalidTierTable
	}

	unbounded := 0
	var prev int64 = 0
	for i, tier := range tiers {
		if tier.UnitPriceCents < 0 {
			return ErrInvalidTierTable
		}
		if tier.UpTo == nil {
			unbounded++
			if i != len(tiers)-1 {
				return ErrInvalidTierTable
			}
			continue
		}
		if *tier.UpTo <= prev {
			return ErrInvalidTierTable
		}
		prev = *tier.UpTo
	}
	if unbounded != 1 {
		return ErrInvalidTierTable
	}
	return nil
}
