package domain

import (
	"context"
	"errors"
)

// Service resolves recurring charges and MRR for plan instances.
type Service interface {
	Resolve(ctx context.Context, req ResolveRequest) (*ResolveResult, error)
}

var (
	ErrInvalidCycle            = errors.New("invalid_billing_cycle")
	ErrInvalidSeats            = errors.New("invalid_seats")
	ErrPricingNotFoundForCycle = errors.New("pricing_not_found_for_cycle")
)
