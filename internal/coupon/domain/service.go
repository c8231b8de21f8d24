package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// CreateCouponRequest creates a coupon on the owning organization.
type CreateCouponRequest struct {
	Code              string       `json:"code"`
	DiscountType      DiscountType `json:"discount_type"`
	DiscountValue     int64        `json:"discount_value"`
	ApplicablePlanIDs []string     `json:"applicable_plan_ids,omitempty"`
	MaxRedemptions    *int64       `json:"max_redemptions,omitempty"`
	ExpiresAt         *time.Time   `json:"expires_at,omitempty"`
}

// Service manages coupon persistence and atomic redemption.
type Service interface {
	Create(ctx context.Context, req CreateCouponRequest) (*Coupon, error)
	GetByCode(ctx context.Context, orgID snowflake.ID, code string) (*Coupon, error)
	Disable(ctx context.Context, couponID string) (*Coupon, error)
	// Redeem increments the redemption count inside the caller's transaction,
	// guarded so concurrent redemptions cannot exceed max_redemptions.
	Redeem(ctx context.Context, tx *gorm.DB, couponID snowflake.ID) error
}

var (
	ErrInvalidCode          = errors.New("invalid_code")
	ErrInvalidDiscountType  = errors.New("invalid_discount_type")
	ErrInvalidDiscountValue = errors.New("invalid_discount_value")
	ErrCouponNotFound       = errors.New("coupon_not_found")
	ErrCouponExpired        = errors.New("coupon_expired")
	ErrCouponDisabled       = errors.New("coupon_disabled")
	ErrCouponNotApplicable  = errors.New("coupon_not_applicable")
	ErrRedemptionsExhausted = errors.New("redemptions_exhausted")
)
