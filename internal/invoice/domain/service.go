package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// GenerateRequest asks for an invoice covering one subscription period.
type GenerateRequest struct {
	SubscriptionID snowflake.ID
	PeriodStart    time.Time
	PeriodEnd      time.Time
	// FreeCycle zeroes the recurring charge; usage and consumable add-on
	// lines still bill.
	FreeCycle bool
}

// Service generates invoices and drives their status machine.
type Service interface {
	// Generate builds a draft invoice for the given period. Generating the
	// same period twice returns the existing invoice.
	Generate(ctx context.Context, orgID snowflake.ID, req GenerateRequest) (*Invoice, error)
	GetByID(ctx context.Context, orgID, id snowflake.ID) (*Invoice, error)
	List(ctx context.Context, page, pageSize int) ([]Invoice, int64, error)
	Finalize(ctx context.Context, orgID, id snowflake.ID) (*Invoice, error)
	// MarkPaid settles the invoice. Paying the first invoice of a draft
	// subscription activates it; paying a past_due subscription's invoice
	// restores it to active.
	MarkPaid(ctx context.Context, orgID, id snowflake.ID) (*Invoice, error)
	MarkOverdue(ctx context.Context, orgID, id snowflake.ID) (*Invoice, error)
	Void(ctx context.Context, orgID, id snowflake.ID, reason string) (*Invoice, error)
}

var (
	ErrInvoiceNotFound   = errors.New("invoice_not_found")
	ErrInvoiceNotDraft   = errors.New("invoice_not_draft")
	ErrInvoiceNotDue     = errors.New("invoice_not_due")
	ErrInvalidTransition = errors.New("invalid_invoice_transition")
	ErrInvalidPeriod     = errors.New("invalid_invoice_period")
	ErrSubscriptionGone  = errors.New("subscription_not_invoiceable")
	ErrMissingVoidReason = errors.New("missing_void_reason")
)
