// Package domain defines price resolution inputs and results.
package domain

import (
	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/deskflow/internal/catalog/domain"
)

// ResolveRequest asks for the recurring charge and MRR of a plan instance.
type ResolveRequest struct {
	PlanID     string                        `json:"plan_id"`
	Cycle      catalogdomain.BillingInterval `json:"billing_cycle"`
	Seats      int64                         `json:"seats"`
	Region     *string                       `json:"region,omitempty"`
	AddOnIDs   []string                      `json:"add_on_ids,omitempty"`
	CouponCode *string                       `json:"coupon_code,omitempty"`
	// FreeCycle short-circuits the recurring charge to zero. Set while a
	// subscription still has free months remaining from a coupon.
	FreeCycle bool `json:"free_cycle,omitempty"`
}

// AddOnCharge is a billed_with_main add-on resolved into a recurring amount.
type AddOnCharge struct {
	AddOnID     snowflake.ID `json:"add_on_id"`
	Name        string       `json:"name"`
	AmountCents int64        `json:"amount_cents"`
}

// ConsumableAddOn is tracked for invoice-time billing only and never enters
// the recurring charge or MRR.
type ConsumableAddOn struct {
	AddOnID        snowflake.ID  `json:"add_on_id"`
	Name           string        `json:"name"`
	UnitPriceCents int64         `json:"unit_price_cents"`
	UsageMeterID   *snowflake.ID `json:"usage_meter_id,omitempty"`
}

// UsageComponent is a usage-priced pricing row resolved at invoice time from
// the period's aggregated usage.
type UsageComponent struct {
	PricingID    snowflake.ID              `json:"pricing_id"`
	UsageMeterID snowflake.ID              `json:"usage_meter_id"`
	Tiers        []catalogdomain.PriceTier `json:"tiers"`
}

// RecurringDescription labels the recurring charge line for a plan and cycle.
// The invoice generator and the resolve preview emit the same string.
func RecurringDescription(planName string, cycle catalogdomain.BillingInterval) string {
	label := "Monthly"
	if cycle == catalogdomain.IntervalYearly {
		label = "Annual"
	}
	return planName + " - " + label + " subscription"
}

// LineItemPreview mirrors the invoice line the resolved price would produce.
type LineItemPreview struct {
	Description    string `json:"description"`
	Quantity       int64  `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	TotalCents     int64  `json:"total_cents"`
}

// ResolveResult is the priced outcome for one plan instance.
type ResolveResult struct {
	PlanID               snowflake.ID      `json:"plan_id"`
	PlanName             string            `json:"plan_name"`
	Currency             string            `json:"currency"`
	RecurringChargeCents int64             `json:"recurring_charge_cents"`
	// PerSeatCents is the per-seat component of the recurring charge, kept
	// separate so invoices can itemize the seat block.
	PerSeatCents int64 `json:"per_seat_cents,omitempty"`
	MRRCents             int64             `json:"mrr_cents"`
	AddOnCharges         []AddOnCharge     `json:"add_on_charges,omitempty"`
	ConsumableAddOns     []ConsumableAddOn `json:"consumable_add_ons,omitempty"`
	UsageComponents      []UsageComponent  `json:"usage_components,omitempty"`
	LineItemPreview      []LineItemPreview `json:"line_item_preview"`
}
