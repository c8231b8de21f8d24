// Package domain contains the lifecycle activity records appended on every
// subscription and invoice status transition.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	SubjectSubscription = "subscription"
	SubjectInvoice      = "invoice"
)

// Record is an immutable audit entry for one lifecycle transition.
type Record struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID      `gorm:"not null;index" json:"org_id"`
	SubjectType string            `gorm:"type:text;not null;index" json:"subject_type"`
	SubjectID   snowflake.ID      `gorm:"not null;index" json:"subject_id"`
	Action      string            `gorm:"type:text;not null" json:"action"`
	OldStatus   *string           `gorm:"type:text" json:"old_status,omitempty"`
	NewStatus   *string           `gorm:"type:text" json:"new_status,omitempty"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Record) TableName() string { return "activity_records" }
