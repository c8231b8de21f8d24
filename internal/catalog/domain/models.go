// Package domain contains the product catalog models backing subscription
// pricing: plans, pricing rows, tier tables and bolt-on add-ons.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// PlanStatus gates whether a plan can back new subscriptions.
type PlanStatus string

const (
	PlanStatusDraft    PlanStatus = "draft"
	PlanStatusActive   PlanStatus = "active"
	PlanStatusArchived PlanStatus = "archived"
)

// PricingModel selects how a plan's recurring charge is computed.
type PricingModel string

const (
	PricingModelFlat   PricingModel = "flat"
	PricingModelSeat   PricingModel = "seat"
	PricingModelUsage  PricingModel = "usage"
	PricingModelHybrid PricingModel = "hybrid"
)

// PricingType distinguishes the rows attached to a plan.
type PricingType string

const (
	PricingTypeBase     PricingType = "base"
	PricingTypeRegional PricingType = "regional"
	PricingTypeSeat     PricingType = "seat"
	PricingTypeUsage    PricingType = "usage"
)

// BillingInterval is the recurrence interval of a pricing row.
type BillingInterval string

const (
	IntervalMonthly BillingInterval = "monthly"
	IntervalYearly  BillingInterval = "yearly"
)

// AddOnBillingType decides whether an add-on contributes to the recurring
// charge or is billed from usage at invoice time.
type AddOnBillingType string

const (
	BillingTypeBilledWithMain AddOnBillingType = "billed_with_main"
	BillingTypeConsumable     AddOnBillingType = "consumable"
)

// PriceTier is one row of an ordered usage tier table. UpTo is the inclusive
// upper bound in units; nil marks the unbounded top tier.
type PriceTier struct {
	UpTo           *int64 `json:"up_to"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// ProductPlan is a sellable plan owned by an organization.
type ProductPlan struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID        snowflake.ID `gorm:"not null;index" json:"org_id"`
	Name         string       `gorm:"type:text;not null" json:"name"`
	Status       PlanStatus   `gorm:"type:text;not null;default:'draft'" json:"status"`
	PricingModel PricingModel `gorm:"type:text;not null" json:"pricing_model"`
	TrialDays    int          `gorm:"not null;default:0" json:"trial_days"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (ProductPlan) TableName() string { return "product_plans" }

// ProductPricing is one pricing row of a plan. Usage rows carry a typed tier
// table instead of an opaque JSON string.
type ProductPricing struct {
	ID            snowflake.ID                    `gorm:"primaryKey" json:"id"`
	OrgID         snowflake.ID                    `gorm:"not null;index" json:"org_id"`
	PlanID        snowflake.ID                    `gorm:"not null;index" json:"plan_id"`
	PricingType   PricingType                     `gorm:"type:text;not null" json:"pricing_type"`
	Region        *string                         `gorm:"type:text" json:"region,omitempty"`
	Currency      string                          `gorm:"type:text;not null" json:"currency"`
	AmountCents   int64                           `gorm:"not null;default:0" json:"amount_cents"`
	Interval      *BillingInterval                `gorm:"type:text" json:"interval,omitempty"`
	PerSeatAmount *int64                          `gorm:"column:per_seat_amount_cents" json:"per_seat_amount_cents,omitempty"`
	UsageMeterID  *snowflake.ID                   `gorm:"index" json:"usage_meter_id,omitempty"`
	UsageTiers    datatypes.JSONType[[]PriceTier] `gorm:"type:jsonb" json:"usage_tiers"`
	CreatedAt     time.Time                       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time                       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (ProductPricing) TableName() string { return "product_pricings" }

// ProductAddOn is a catalog add-on that can attach to plans.
type ProductAddOn struct {
	ID            snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID         snowflake.ID  `gorm:"not null;index" json:"org_id"`
	Name          string        `gorm:"type:text;not null" json:"name"`
	AmountCents   int64         `gorm:"not null;default:0" json:"amount_cents"`
	PerSeatAmount *int64        `gorm:"column:per_seat_amount_cents" json:"per_seat_amount_cents,omitempty"`
	UsageMeterID  *snowflake.ID `gorm:"index" json:"usage_meter_id,omitempty"`
	CreatedAt     time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (ProductAddOn) TableName() string { return "product_add_ons" }

// ProductPlanAddOn attaches an add-on to a plan with a per-plan billing type.
// The same add-on may attach to different plans with different billing types.
type ProductPlanAddOn struct {
	ID           snowflake.ID     `gorm:"primaryKey" json:"id"`
	OrgID        snowflake.ID     `gorm:"not null;index" json:"org_id"`
	PlanID       snowflake.ID     `gorm:"not null;uniqueIndex:ux_plan_add_on,priority:1" json:"plan_id"`
	AddOnID      snowflake.ID     `gorm:"not null;uniqueIndex:ux_plan_add_on,priority:2" json:"add_on_id"`
	BillingType  AddOnBillingType `gorm:"type:text;not null" json:"billing_type"`
	DisplayOrder int              `gorm:"not null;default:0" json:"display_order"`
	CreatedAt    time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (ProductPlanAddOn) TableName() string { return "product_plan_add_ons" }
