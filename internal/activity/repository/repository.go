package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	activitydomain "github.com/smallbiznis/deskflow/internal/activity/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type RecorderParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Recorder struct {
	db  *gorm.DB
	log *zap.Logger

	genID *snowflake.Node
}

func Provide(p RecorderParam) activitydomain.Recorder {
	return &Recorder{
		db:  p.DB,
		log: p.Log.Named("activity.recorder"),

		genID: p.GenID,
	}
}

func (r *Recorder) RecordTx(ctx context.Context, tx *gorm.DB, transition activitydomain.Transition) error {
	if tx == nil {
		return errors.New("missing_transaction")
	}
	if transition.OrgID == 0 || transition.SubjectID == 0 {
		return errors.New("invalid_subject")
	}

	metadata := datatypes.JSONMap{}
	for key, value := range transition.Metadata {
		metadata[key] = value
	}

	record := activitydomain.Record{
		ID:          r.genID.Generate(),
		OrgID:       transition.OrgID,
		SubjectType: transition.SubjectType,
		SubjectID:   transition.SubjectID,
		Action:      transition.Action,
		Metadata:    metadata,
		CreatedAt:   time.Now().UTC(),
	}
	if transition.OldStatus != "" {
		record.OldStatus = &transition.OldStatus
	}
	if transition.NewStatus != "" {
		record.NewStatus = &transition.NewStatus
	}

	return tx.WithContext(ctx).Create(&record).Error
}

func (r *Recorder) ListForSubject(ctx context.Context, orgID snowflake.ID, subjectType string, subjectID snowflake.ID) ([]activitydomain.Record, error) {
	var records []activitydomain.Record
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND subject_type = ? AND subject_id = ?", orgID, subjectType, subjectID).
		Order("created_at ASC, id ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
