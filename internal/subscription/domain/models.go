// Package domain contains the subscription model and its status machine.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// SubscriptionStatus is the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	StatusDraft    SubscriptionStatus = "draft"
	StatusTrial    SubscriptionStatus = "trial"
	StatusActive   SubscriptionStatus = "active"
	StatusPastDue  SubscriptionStatus = "past_due"
	StatusCanceled SubscriptionStatus = "canceled"
	StatusPaused   SubscriptionStatus = "paused"
)

// CollectionMethod is how payment is obtained.
type CollectionMethod string

const (
	CollectionAutomatic   CollectionMethod = "automatic"
	CollectionSendInvoice CollectionMethod = "send_invoice"
)

// BillingCycle is the recurrence interval of the subscription.
type BillingCycle string

const (
	CycleMonthly BillingCycle = "monthly"
	CycleYearly  BillingCycle = "yearly"
)

// BlockingStatuses are the states that count against the one-active-
// subscription-per-customer invariant.
var BlockingStatuses = []SubscriptionStatus{StatusActive, StatusTrial, StatusPastDue}

// Subscription binds a customer organization to a plan for a billing cycle.
type Subscription struct {
	ID                  snowflake.ID       `gorm:"primaryKey" json:"id"`
	OrgID               snowflake.ID       `gorm:"not null;index" json:"org_id"`
	CustomerOrgID       snowflake.ID       `gorm:"not null;index" json:"customer_org_id"`
	PlanID              snowflake.ID       `gorm:"not null;index" json:"plan_id"`
	Status              SubscriptionStatus `gorm:"type:text;not null;default:'draft'" json:"status"`
	CollectionMethod    CollectionMethod   `gorm:"type:text;not null" json:"collection_method"`
	BillingCycle        BillingCycle       `gorm:"type:text;not null" json:"billing_cycle"`
	CurrentPeriodStart  time.Time          `gorm:"not null" json:"current_period_start"`
	CurrentPeriodEnd    time.Time          `gorm:"not null" json:"current_period_end"`
	Seats               int64              `gorm:"not null;default:1" json:"seats"`
	Region              *string            `gorm:"type:text" json:"region,omitempty"`
	MRRCents            int64              `gorm:"not null;default:0" json:"mrr_cents"`
	Currency            string             `gorm:"type:text;not null" json:"currency"`
	CouponID            *snowflake.ID      `gorm:"index" json:"coupon_id,omitempty"`
	FreeMonthsRemaining int64              `gorm:"not null;default:0" json:"free_months_remaining"`
	TrialEndsAt         *time.Time         `json:"trial_ends_at,omitempty"`
	DealID              *snowflake.ID      `gorm:"index" json:"deal_id,omitempty"`
	ActivatedAt         *time.Time         `json:"activated_at,omitempty"`
	CanceledAt          *time.Time         `json:"canceled_at,omitempty"`
	// Most recently closed period, kept so invoice generation can be
	// retried after a rollover that committed without its invoice.
	LastClosedPeriodStart *time.Time `json:"last_closed_period_start,omitempty"`
	LastClosedPeriodEnd   *time.Time `json:"last_closed_period_end,omitempty"`
	LastClosedFreeCycle   bool       `gorm:"not null;default:false" json:"last_closed_free_cycle"`
	CreatedAt           time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt           time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// SelectedAddOn persists which plan add-ons a subscription carries.
type SelectedAddOn struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID          snowflake.ID `gorm:"not null;index" json:"org_id"`
	SubscriptionID snowflake.ID `gorm:"not null;index" json:"subscription_id"`
	AddOnID        snowflake.ID `gorm:"not null" json:"add_on_id"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
}

// TableName sets the database table name.
func (SelectedAddOn) TableName() string { return "subscription_add_ons" }
