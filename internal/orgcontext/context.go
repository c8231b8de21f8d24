// Package orgcontext carries tenant identifiers through request contexts.
// Every core operation takes both the owning organization and the customer
// organization explicitly so tenant isolation stays auditable.
package orgcontext

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type contextKey string

const (
	orgIDKey         contextKey = "org_id"
	customerOrgIDKey contextKey = "customer_org_id"
)

var ErrMissingOrganization = errors.New("missing_organization")

// WithOrgID attaches the owning organization id to the context.
func WithOrgID(ctx context.Context, orgID snowflake.ID) context.Context {
	return context.WithValue(ctx, orgIDKey, orgID)
}

// WithCustomerOrgID attaches the customer organization id to the context.
func WithCustomerOrgID(ctx context.Context, customerOrgID snowflake.ID) context.Context {
	return context.WithValue(ctx, customerOrgIDKey, customerOrgID)
}

// OrgID extracts the owning organization id from the context.
func OrgID(ctx context.Context) (snowflake.ID, error) {
	value, ok := ctx.Value(orgIDKey).(snowflake.ID)
	if !ok || value == 0 {
		return 0, ErrMissingOrganization
	}
	return value, nil
}

// CustomerOrgID extracts the customer organization id from the context.
func CustomerOrgID(ctx context.Context) (snowflake.ID, bool) {
	value, ok := ctx.Value(customerOrgIDKey).(snowflake.ID)
	if !ok || value == 0 {
		return 0, false
	}
	return value, true
}
