// Package domain contains persistence models for recorded usage history.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// UsageRecord stores a recorded quantity for one subscription, meter and
// billing period. Records are immutable once written; a new period gets new
// rows rather than updates.
type UsageRecord struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID          snowflake.ID      `gorm:"not null;index" json:"org_id"`
	CustomerOrgID  snowflake.ID      `gorm:"not null;index" json:"customer_org_id"`
	SubscriptionID snowflake.ID      `gorm:"not null;index" json:"subscription_id"`
	MeterID        snowflake.ID      `gorm:"not null;index" json:"meter_id"`
	PeriodStart    time.Time         `gorm:"not null" json:"period_start"`
	Quantity       int64             `gorm:"not null" json:"quantity"`
	RecordedAt     time.Time         `gorm:"not null" json:"recorded_at"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
}

// TableName sets the database table name.
func (UsageRecord) TableName() string { return "usage_records" }
