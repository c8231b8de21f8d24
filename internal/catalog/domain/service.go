package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// CreatePlanRequest creates a new plan in draft status.
type CreatePlanRequest struct {
	Name         string       `json:"name"`
	PricingModel PricingModel `json:"pricing_model"`
	TrialDays    int          `json:"trial_days"`
}

// CreatePricingRequest attaches a pricing row to a plan.
type CreatePricingRequest struct {
	PlanID        string           `json:"plan_id"`
	PricingType   PricingType      `json:"pricing_type"`
	Region        *string          `json:"region,omitempty"`
	Currency      string           `json:"currency"`
	AmountCents   int64            `json:"amount_cents"`
	Interval      *BillingInterval `json:"interval,omitempty"`
	PerSeatAmount *int64           `json:"per_seat_amount_cents,omitempty"`
	UsageMeterID  *string          `json:"usage_meter_id,omitempty"`
	UsageTiers    []PriceTier      `json:"usage_tiers,omitempty"`
}

// AttachAddOnRequest attaches a catalog add-on to a plan.
type AttachAddOnRequest struct {
	PlanID       string           `json:"plan_id"`
	AddOnID      string           `json:"add_on_id"`
	BillingType  AddOnBillingType `json:"billing_type"`
	DisplayOrder int              `json:"display_order"`
}

// PlanAddOnView joins a plan attachment with its catalog add-on.
type PlanAddOnView struct {
	Attachment ProductPlanAddOn
	AddOn      ProductAddOn
}

// Service manages catalog reads and writes for pricing resolution.
type Service interface {
	CreatePlan(ctx context.Context, req CreatePlanRequest) (*ProductPlan, error)
	ActivatePlan(ctx context.Context, planID string) (*ProductPlan, error)
	ArchivePlan(ctx context.Context, planID string) (*ProductPlan, error)
	ListPlans(ctx context.Context) ([]ProductPlan, error)
	GetPlan(ctx context.Context, orgID, planID snowflake.ID) (*ProductPlan, error)
	CreatePricing(ctx context.Context, req CreatePricingRequest) (*ProductPricing, error)
	ListPricings(ctx context.Context, orgID, planID snowflake.ID) ([]ProductPricing, error)
	CreateAddOn(ctx context.Context, name string, amountCents int64, perSeatAmount *int64, usageMeterID *string) (*ProductAddOn, error)
	AttachAddOn(ctx context.Context, req AttachAddOnRequest) (*ProductPlanAddOn, error)
	ListPlanAddOns(ctx context.Context, orgID, planID snowflake.ID) ([]PlanAddOnView, error)
}

var (
	ErrInvalidName          = errors.New("invalid_name")
	ErrInvalidPricingModel  = errors.New("invalid_pricing_model")
	ErrInvalidPricingType   = errors.New("invalid_pricing_type")
	ErrInvalidCurrency      = errors.New("invalid_currency")
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrInvalidInterval      = errors.New("invalid_interval")
	ErrInvalidPlanID        = errors.New("invalid_plan_id")
	ErrInvalidAddOnID       = errors.New("invalid_add_on_id")
	ErrInvalidBillingType   = errors.New("invalid_billing_type")
	ErrPlanNotFound         = errors.New("plan_not_found")
	ErrPlanArchived         = errors.New("plan_archived")
	ErrAddOnNotFound        = errors.New("add_on_not_found")
	ErrAddOnAlreadyAttached = errors.New("add_on_already_attached")
	ErrInvalidTierTable     = errors.New("invalid_tier_table")
)
