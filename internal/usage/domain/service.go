package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// RecordUsageRequest records a quantity against a subscription's meter for
// the period starting at PeriodStart.
type RecordUsageRequest struct {
	SubscriptionID string         `json:"subscription_id"`
	MeterID        string         `json:"meter_id"`
	PeriodStart    time.Time      `json:"period_start"`
	Quantity       int64          `json:"quantity"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Service records usage and aggregates it per billing period.
type Service interface {
	Record(ctx context.Context, req RecordUsageRequest) (*UsageRecord, error)
	// AggregateForPeriod sums recorded quantities for one meter inside
	// [periodStart, periodEnd).
	AggregateForPeriod(ctx context.Context, orgID, subscriptionID, meterID snowflake.ID, periodStart, periodEnd time.Time) (int64, error)
}

var (
	ErrInvalidSubscription = errors.New("invalid_subscription")
	ErrInvalidMeter        = errors.New("invalid_meter")
	ErrInvalidQuantity     = errors.New("invalid_quantity")
	ErrInvalidPeriod       = errors.New("invalid_period")
)
