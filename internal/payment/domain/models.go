// Package domain defines payment records settled against invoices.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// PaymentMethod is how a payment arrived.
type PaymentMethod string

const (
	MethodManual       PaymentMethod = "manual"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCard         PaymentMethod = "card"
)

// Payment settles one invoice in full. Reference carries the external
// transaction id and dedupes retried submissions.
type Payment struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID  `gorm:"not null;uniqueIndex:ux_payment_reference,priority:1" json:"org_id"`
	InvoiceID   snowflake.ID  `gorm:"not null;index" json:"invoice_id"`
	AmountCents int64         `gorm:"not null" json:"amount_cents"`
	Currency    string        `gorm:"type:text;not null" json:"currency"`
	Method      PaymentMethod `gorm:"type:text;not null" json:"method"`
	Reference   string        `gorm:"type:text;not null;uniqueIndex:ux_payment_reference,priority:2" json:"reference"`
	ReceivedAt  time.Time     `gorm:"not null" json:"received_at"`
	CreatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "payments" }
