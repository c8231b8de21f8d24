package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// CreateSubscriptionRequest subscribes a customer organization to a plan.
type CreateSubscriptionRequest struct {
	CustomerOrgID    string           `json:"customer_org_id"`
	PlanID           string           `json:"plan_id"`
	BillingCycle     BillingCycle     `json:"billing_cycle"`
	Seats            int64            `json:"seats"`
	Region           *string          `json:"region,omitempty"`
	CollectionMethod CollectionMethod `json:"collection_method"`
	AddOnIDs         []string         `json:"add_on_ids,omitempty"`
	CouponCode       *string          `json:"coupon_code,omitempty"`
	DealID           *string          `json:"deal_id,omitempty"`
}

// RolledPeriod reports the period closed by a rollover.
type RolledPeriod struct {
	SubscriptionID snowflake.ID `json:"subscription_id"`
	PeriodStart    time.Time    `json:"period_start"`
	PeriodEnd      time.Time    `json:"period_end"`
	// FreeCycle marks whether the closed period was covered by a
	// free-months coupon.
	FreeCycle bool `json:"free_cycle"`
}

// Service drives the subscription lifecycle.
type Service interface {
	Create(ctx context.Context, req CreateSubscriptionRequest) (*Subscription, error)
	GetByID(ctx context.Context, orgID, id snowflake.ID) (*Subscription, error)
	List(ctx context.Context, page, pageSize int) ([]Subscription, int64, error)
	ListAddOnIDs(ctx context.Context, orgID, subscriptionID snowflake.ID) ([]snowflake.ID, error)
	// ActivateOnPayment transitions draft → active once the gating invoice
	// is paid. The Tx form runs inside the invoice service's payment
	// transaction so the paid invoice and the activation commit together.
	ActivateOnPayment(ctx context.Context, orgID, subscriptionID snowflake.ID) (*Subscription, error)
	ActivateOnPaymentTx(ctx context.Context, tx *gorm.DB, orgID, subscriptionID snowflake.ID) (*Subscription, error)
	// RollPeriod advances the billing period by one cycle once the current
	// period has ended. Idempotent: a period that already rolled is skipped.
	RollPeriod(ctx context.Context, orgID, subscriptionID snowflake.ID) (*RolledPeriod, error)
	// EndTrial transitions trial → active once the trial window has elapsed.
	EndTrial(ctx context.Context, orgID, subscriptionID snowflake.ID) (*Subscription, error)
	MarkPastDue(ctx context.Context, orgID, subscriptionID snowflake.ID) (*Subscription, error)
	MarkPastDueResolved(ctx context.Context, orgID, subscriptionID snowflake.ID) (*Subscription, error)
	MarkPastDueResolvedTx(ctx context.Context, tx *gorm.DB, orgID, subscriptionID snowflake.ID) (*Subscription, error)
	Cancel(ctx context.Context, orgID, subscriptionID snowflake.ID) (*Subscription, error)
	Pause(ctx context.Context, orgID, subscriptionID snowflake.ID) (*Subscription, error)
	Resume(ctx context.Context, orgID, subscriptionID snowflake.ID) (*Subscription, error)
}

var (
	ErrInvalidCustomer          = errors.New("invalid_customer")
	ErrInvalidPlan              = errors.New("invalid_plan")
	ErrInvalidCycle             = errors.New("invalid_billing_cycle")
	ErrInvalidSeats             = errors.New("invalid_seats")
	ErrInvalidCollectionMethod  = errors.New("invalid_collection_method")
	ErrPlanNotSubscribable      = errors.New("plan_not_subscribable")
	ErrActiveSubscriptionExists = errors.New("active_subscription_exists")
	ErrSubscriptionNotFound     = errors.New("subscription_not_found")
	ErrInvalidTransition        = errors.New("invalid_transition")
	ErrPeriodNotEnded           = errors.New("period_not_ended")
	ErrTrialNotEnded            = errors.New("trial_not_ended")
)
