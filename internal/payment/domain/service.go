package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// RecordPaymentRequest settles an invoice.
type RecordPaymentRequest struct {
	InvoiceID   snowflake.ID
	AmountCents int64
	Method      PaymentMethod
	Reference   string
}

// Service records payments and settles the invoices they cover.
type Service interface {
	// Record registers a payment and marks its invoice paid. Submitting the
	// same reference twice returns the payment recorded the first time.
	Record(ctx context.Context, orgID snowflake.ID, req RecordPaymentRequest) (*Payment, error)
	ListForInvoice(ctx context.Context, orgID, invoiceID snowflake.ID) ([]Payment, error)
}

var (
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrInvalidMethod    = errors.New("invalid_method")
	ErrInvalidReference = errors.New("invalid_reference")
	ErrAmountMismatch   = errors.New("amount_mismatch")
)
