// Package domain defines invoices and their status machine.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// InvoiceStatus is the lifecycle state of an invoice.
type InvoiceStatus string

const (
	StatusDraft    InvoiceStatus = "draft"
	StatusFinal    InvoiceStatus = "final"
	StatusPaid     InvoiceStatus = "paid"
	StatusOverdue  InvoiceStatus = "overdue"
	StatusCanceled InvoiceStatus = "canceled"
)

// LineItemKind tags where a line item came from.
type LineItemKind string

const (
	LineRecurring LineItemKind = "recurring"
	LineSeat      LineItemKind = "seat"
	LineAddOn     LineItemKind = "add_on"
	LineUsage     LineItemKind = "usage"
)

// LineItem is one priced row on an invoice. Line items are frozen into the
// invoice at generation time.
type LineItem struct {
	Kind           LineItemKind `json:"kind"`
	Description    string       `json:"description"`
	Quantity       int64        `json:"quantity"`
	UnitPriceCents int64        `json:"unit_price_cents"`
	TotalCents     int64        `json:"total_cents"`
}

// Invoice bills one closed (or opening) period of a subscription. At most one
// invoice exists per subscription period.
type Invoice struct {
	ID             snowflake.ID                      `gorm:"primaryKey" json:"id"`
	OrgID          snowflake.ID                      `gorm:"not null;index" json:"org_id"`
	CustomerOrgID  snowflake.ID                      `gorm:"not null;index" json:"customer_org_id"`
	SubscriptionID snowflake.ID                      `gorm:"not null;uniqueIndex:ux_invoice_period,priority:1" json:"subscription_id"`
	Number         string                            `gorm:"type:text;not null" json:"number"`
	Status         InvoiceStatus                     `gorm:"type:text;not null;default:'draft'" json:"status"`
	Currency       string                            `gorm:"type:text;not null" json:"currency"`
	PeriodStart    time.Time                         `gorm:"not null" json:"period_start"`
	PeriodEnd      time.Time                         `gorm:"not null;uniqueIndex:ux_invoice_period,priority:2" json:"period_end"`
	LineItems      datatypes.JSONType[[]LineItem]    `gorm:"type:jsonb" json:"line_items"`
	SubtotalCents  int64                             `gorm:"not null;default:0" json:"subtotal_cents"`
	TaxCents       int64                             `gorm:"not null;default:0" json:"tax_cents"`
	TotalCents     int64                             `gorm:"not null;default:0" json:"total_cents"`
	IssuedAt       time.Time                         `gorm:"not null" json:"issued_at"`
	DueAt          time.Time                         `gorm:"not null" json:"due_at"`
	FinalizedAt    *time.Time                        `json:"finalized_at,omitempty"`
	PaidAt         *time.Time                        `json:"paid_at,omitempty"`
	VoidedAt       *time.Time                        `json:"voided_at,omitempty"`
	VoidReason     *string                           `gorm:"type:text" json:"void_reason,omitempty"`
	CreatedAt      time.Time                         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time                         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// allowedTransitions is the invoice status machine. paid and canceled are
// terminal.
var allowedTransitions = map[InvoiceStatus][]InvoiceStatus{
	StatusDraft:   {StatusFinal, StatusCanceled},
	StatusFinal:   {StatusPaid, StatusOverdue, StatusCanceled},
	StatusOverdue: {StatusPaid, StatusCanceled},
}

// CanTransition reports whether the status machine allows from → to.
func CanTransition(from, to InvoiceStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
