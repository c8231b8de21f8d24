package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/deskflow/internal/money"
)

// Validate checks whether the coupon can be applied to the given plan at the
// given instant. Validation never mutates the redemption count; only a
// committing subscription creation redeems.
func Validate(coupon *Coupon, planID snowflake.ID, now time.Time) error {
	if coupon == nil {
		return ErrCouponNotFound
	}
	switch coupon.Status {
	case CouponStatusActive:
	case CouponStatusDisabled:
		return ErrCouponDisabled
	default:
		return ErrCouponExpired
	}
	if coupon.ExpiresAt != nil && now.After(*coupon.ExpiresAt) {
		return ErrCouponExpired
	}
	if coupon.MaxRedemptions != nil && coupon.RedemptionCount >= *coupon.MaxRedemptions {
		return ErrRedemptionsExhausted
	}
	if !AppliesToPlan(coupon, planID) {
		return ErrCouponNotApplicable
	}
	return nil
}

// AppliesToPlan reports whether the coupon covers the plan. A nil plan list
// means the coupon applies to all plans.
func AppliesToPlan(coupon *Coupon, planID snowflake.ID) bool {
	if coupon.ApplicablePlanIDs == nil {
		return true
	}
	for _, id := range coupon.ApplicablePlanIDs.Data() {
		if id == planID {
			return true
		}
	}
	return false
}

// ApplyDiscount transforms an amount for the amount-affecting discount types.
// free_months and trial_extension pass the amount through untouched; their
// effects live on the subscription record.
func ApplyDiscount(discountType DiscountType, value, amountCents int64) int64 {
	switch discountType {
	case DiscountPercentage:
		return money.PercentOff(amountCents, value)
	case DiscountFixedAmount:
		return money.FixedOff(amountCents, value)
	default:
		return amountCents
	}
}
