// Package domain contains coupon models and the pure discount rules.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// DiscountType selects how a coupon alters a subscription.
type DiscountType string

const (
	// DiscountPercentage reduces the recurring charge by a percentage.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixedAmount subtracts a fixed amount of cents, floored at zero.
	DiscountFixedAmount DiscountType = "fixed_amount"
	// DiscountFreeMonths charges zero for N billing cycles; not an amount
	// transform, tracked on the subscription.
	DiscountFreeMonths DiscountType = "free_months"
	// DiscountTrialExtension extends the trial end by N days; no pricing
	// interaction.
	DiscountTrialExtension DiscountType = "trial_extension"
)

// CouponStatus gates redemption.
type CouponStatus string

const (
	CouponStatusActive   CouponStatus = "active"
	CouponStatusExpired  CouponStatus = "expired"
	CouponStatusDisabled CouponStatus = "disabled"
)

// Coupon is a redeemable discount scoped to an organization's catalog.
// ApplicablePlanIDs nil means the coupon applies to every plan.
type Coupon struct {
	ID                snowflake.ID                        `gorm:"primaryKey" json:"id"`
	OrgID             snowflake.ID                        `gorm:"not null;uniqueIndex:ux_coupon_code,priority:1" json:"org_id"`
	Code              string                              `gorm:"type:text;not null;uniqueIndex:ux_coupon_code,priority:2" json:"code"`
	DiscountType      DiscountType                        `gorm:"type:text;not null" json:"discount_type"`
	DiscountValue     int64                               `gorm:"not null" json:"discount_value"`
	ApplicablePlanIDs *datatypes.JSONType[[]snowflake.ID] `gorm:"type:jsonb" json:"applicable_plan_ids,omitempty"`
	MaxRedemptions    *int64                              `json:"max_redemptions,omitempty"`
	RedemptionCount   int64                               `gorm:"not null;default:0" json:"redemption_count"`
	Status            CouponStatus                        `gorm:"type:text;not null;default:'active'" json:"status"`
	ExpiresAt         *time.Time                          `json:"expires_at,omitempty"`
	CreatedAt         time.Time                           `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time                           `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Coupon) TableName() string { return "coupons" }
