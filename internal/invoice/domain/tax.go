package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// TaxCalculator computes the tax owed on an invoice subtotal. The default
// implementation charges nothing; a real tax provider can be swapped in
// through the fx graph.
type TaxCalculator interface {
	Calculate(ctx context.Context, orgID snowflake.ID, subtotalCents int64) (int64, error)
}

// ZeroTax charges no tax.
type ZeroTax struct{}

func (ZeroTax) Calculate(_ context.Context, _ snowflake.ID, _ int64) (int64, error) {
	return 0, nil
}
