package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

func activeCoupon() *Coupon {
	return &Coupon{
		ID:            snowflake.ID(1),
		OrgID:         snowflake.ID(1),
		Code:          "WELCOME20",
		DiscountType:  DiscountPercentage,
		DiscountValue: 20,
		Status:        CouponStatusActive,
	}
}

func TestValidateActiveCoupon(t *testing.T) {
	now := time.Now().UTC()
	if err := Validate(activeCoupon(), snowflake.ID(42), now); err != nil {
		t.Fatalf("expected valid coupon, got %v", err)
	}
}

func TestValidateNilCoupon(t *testing.T) {
	if err := Validate(nil, snowflake.ID(42), time.Now().UTC()); !errors.Is(err, ErrCouponNotFound) {
		t.Fatalf("expected ErrCouponNotFound, got %v", err)
	}
}

func TestValidateDisabledCoupon(t *testing.T) {
	coupon := activeCoupon()
	coupon.Status = CouponStatusDisabled
	if err := Validate(coupon, snowflake.ID(42), time.Now().UTC()); !errors.Is(err, ErrCouponDisabled) {
		t.Fatalf("expected ErrCouponDisabled, got %v", err)
	}
}

func TestValidateExpiredStatus(t *testing.T) {
	coupon := activeCoupon()
	coupon.Status = CouponStatusExpired
	if err := Validate(coupon, snowflake.ID(42), time.Now().UTC()); !errors.Is(err, ErrCouponExpired) {
		t.Fatalf("expected ErrCouponExpired, got %v", err)
	}
}

func TestValidateExpiresAtElapsed(t *testing.T) {
	now := time.Now().UTC()
	expired := now.Add(-time.Hour)
	coupon := activeCoupon()
	coupon.ExpiresAt = &expired
	if err := Validate(coupon, snowflake.ID(42), now); !errors.Is(err, ErrCouponExpired) {
		t.Fatalf("expected ErrCouponExpired, got %v", err)
	}
}

func TestValidateRedemptionsExhausted(t *testing.T) {
	limit := int64(5)
	coupon := activeCoupon()
	coupon.MaxRedemptions = &limit
	coupon.RedemptionCount = 5
	if err := Validate(coupon, snowflake.ID(42), time.Now().UTC()); !errors.Is(err, ErrRedemptionsExhausted) {
		t.Fatalf("expected ErrRedemptionsExhausted, got %v", err)
	}
}

func TestValidatePlanScope(t *testing.T) {
	scoped := datatypes.NewJSONType([]snowflake.ID{snowflake.ID(42)})
	coupon := activeCoupon()
	coupon.ApplicablePlanIDs = &scoped

	if err := Validate(coupon, snowflake.ID(42), time.Now().UTC()); err != nil {
		t.Fatalf("expected coupon to apply to listed plan, got %v", err)
	}
	if err := Validate(coupon, snowflake.ID(43), time.Now().UTC()); !errors.Is(err, ErrCouponNotApplicable) {
		t.Fatalf("expected ErrCouponNotApplicable, got %v", err)
	}
}

func TestApplyDiscount(t *testing.T) {
	cases := []struct {
		name         string
		discountType DiscountType
		value        int64
		amount       int64
		want         int64
	}{
		{"percentage", DiscountPercentage, 20, 10000, 8000},
		{"percentage full", DiscountPercentage, 100, 9900, 0},
		{"fixed amount", DiscountFixedAmount, 2500, 10000, 7500},
		{"fixed amount floors at zero", DiscountFixedAmount, 1000, 500, 0},
		{"free months passes through", DiscountFreeMonths, 2, 9900, 9900},
		{"trial extension passes through", DiscountTrialExtension, 30, 9900, 9900},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ApplyDiscount(tc.discountType, tc.value, tc.amount); got != tc.want {
				t.Fatalf("ApplyDiscount(%s, %d, %d) = %d, want %d", tc.discountType, tc.value, tc.amount, got, tc.want)
			}
		})
	}
}
