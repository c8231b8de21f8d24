package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/deskflow/internal/clock"
	"github.com/smallbiznis/deskflow/internal/events"
	"github.com/smallbiznis/deskflow/internal/orgcontext"
	subscriptiondomain "github.com/smallbiznis/deskflow/internal/subscription/domain"
	usagedomain "github.com/smallbiznis/deskflow/internal/usage/domain"
	"github.com/smallbiznis/deskflow/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	SubSvc subscriptiondomain.Service
	Outbox *events.Outbox
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID     *snowflake.Node
	clock     clock.Clock
	subSvc    subscriptiondomain.Service
	usagerepo repository.Repository[usagedomain.UsageRecord]
	outbox    *events.Outbox
}

func NewService(p ServiceParam) usagedomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("usage.service"),

		genID:     p.GenID,
		clock:     p.Clock,
		subSvc:    p.SubSvc,
		usagerepo: repository.ProvideStore[usagedomain.UsageRecord](p.DB),
		outbox:    p.Outbox,
	}
}

func (s *Service) Record(ctx context.Context, req usagedomain.RecordUsageRequest) (*usagedomain.UsageRecord, error) {
	orgID, err := orgcontext.OrgID(ctx)
	if err != nil {
		return nil, err
	}

	subscriptionID, err := parseID(req.SubscriptionID, usagedomain.ErrInvalidSubscription)
	if err != nil {
		return nil, err
	}
	meterID, err := parseID(req.MeterID, usagedomain.ErrInvalidMeter)
	if err != nil {
		return nil, err
	}
	if req.Quantity < 0 {
		return nil, usagedomain.ErrInvalidQuantity
	}
	if req.PeriodStart.IsZero() {
		return nil, usagedomain.ErrInvalidPeriod
	}

	subscription, err := s.subSvc.GetByID(ctx, orgID, subscriptionID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	record := &usagedomain.UsageRecord{
		ID:             s.genID.Generate(),
		OrgID:          orgID,
		CustomerOrgID:  subscription.CustomerOrgID,
		SubscriptionID: subscriptionID,
		MeterID:        meterID,
		PeriodStart:    req.PeriodStart.UTC(),
		Quantity:       req.Quantity,
		RecordedAt:     now,
		CreatedAt:      now,
	}
	if req.Metadata != nil {
		record.Metadata = datatypes.JSONMap(req.Metadata)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.usagerepo.CreateTx(ctx, tx, record); err != nil {
			return err
		}
		return s.outbox.PublishTx(ctx, tx, events.Event{
			OrgID: orgID,
			Type:  events.EventUsageRecorded,
			Payload: map[string]any{
				"usage_record_id": record.ID.String(),
				"subscription_id": subscriptionID.String(),
				"meter_id":        meterID.String(),
				"quantity":        req.Quantity,
			},
			DedupeKey: "usage:" + record.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

func (s *Service) AggregateForPeriod(ctx context.Context, orgID, subscriptionID, meterID snowflake.ID, periodStart, periodEnd time.Time) (int64, error) {
	if !periodEnd.After(periodStart) {
		return 0, usagedomain.ErrInvalidPeriod
	}
	var quantity int64
	err := s.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(quantity), 0)
		 FROM usage_records
		 WHERE org_id = ? AND subscription_id = ? AND meter_id = ?
		 AND period_start >= ? AND period_start < ?`,
		orgID,
		subscriptionID,
		meterID,
		periodStart,
		periodEnd,
	).Scan(&quantity).Error
	if err != nil {
		return 0, err
	}
	return quantity, nil
}

func parseID(value string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil {
		return 0, invalid
	}
	return id, nil
}
