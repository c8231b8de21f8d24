package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Transition captures the data recorded for one status change.
type Transition struct {
	OrgID       snowflake.ID
	SubjectType string
	SubjectID   snowflake.ID
	Action      string
	OldStatus   string
	NewStatus   string
	Metadata    map[string]any
}

// Recorder appends activity records, inside the caller's transaction when
// one is supplied.
type Recorder interface {
	RecordTx(ctx context.Context, tx *gorm.DB, transition Transition) error
	ListForSubject(ctx context.Context, orgID snowflake.ID, subjectType string, subjectID snowflake.ID) ([]Record, error)
}
