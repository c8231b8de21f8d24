// Package scheduler drives the periodic billing sweeps: rolling ended
// periods into invoices, ending elapsed trials, and flagging overdue
// invoices.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/robfig/cron/v3"
	"github.com/smallbiznis/deskflow/internal/clock"
	"github.com/smallbiznis/deskflow/internal/config"
	invoicedomain "github.com/smallbiznis/deskflow/internal/invoice/domain"
	subscriptiondomain "github.com/smallbiznis/deskflow/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type SchedulerParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Config     config.Config
	Clock      clock.Clock
	SubSvc     subscriptiondomain.Service
	InvoiceSvc invoicedomain.Service
}

type Scheduler struct {
	db  *gorm.DB
	log *zap.Logger

	spec       string
	batchSize  int
	clock      clock.Clock
	subSvc     subscriptiondomain.Service
	invoiceSvc invoicedomain.Service
	cron       *cron.Cron
}

func New(p SchedulerParam) *Scheduler {
	return &Scheduler{
		db:  p.DB,
		log: p.Log.Named("scheduler"),

		spec:       p.Config.Billing.SchedulerSpec,
		batchSize:  p.Config.Billing.SchedulerBatchSize,
		clock:      p.Clock,
		subSvc:     p.SubSvc,
		invoiceSvc: p.InvoiceSvc,
	}
}

// Register hooks the cron loop into the application lifecycle.
func Register(lc fx.Lifecycle, s *Scheduler) error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.spec, func() {
		s.Sweep(context.Background())
	}); err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			s.cron.Start()
			s.log.Info("scheduler started", zap.String("spec", s.spec))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			stopped := s.cron.Stop()
			select {
			case <-stopped.Done():
			case <-ctx.Done():
			}
			return nil
		},
	})
	return nil
}

// Sweep runs one pass of all three sweeps. Errors are logged per item and
// never abort the pass.
func (s *Scheduler) Sweep(ctx context.Context) {
	s.SweepRollovers(ctx)
	s.SweepTrials(ctx)
	s.SweepOverdue(ctx)
}

// SweepRollovers advances ended periods, then invoices every closed period
// that has no invoice yet. Generation works off the closed-period columns the
// rollover persisted, so a generation failure is retried on the next pass
// instead of being lost with the rollover transaction.
func (s *Scheduler) SweepRollovers(ctx context.Context) {
	now := s.clock.Now()
	due, err := s.fetchDueSubscriptions(ctx, now, s.batchSize)
	if err != nil {
		s.log.Error("failed to fetch due subscriptions", zap.Error(err))
		return
	}

	for _, work := range due {
		if _, err := s.subSvc.RollPeriod(ctx, work.OrgID, work.ID); err != nil {
			// Someone else rolled it between fetch and claim.
			if errors.Is(err, subscriptiondomain.ErrPeriodNotEnded) {
				continue
			}
			s.log.Error("rollover failed",
				zap.String("subscription_id", work.ID.String()),
				zap.Error(err),
			)
		}
	}

	pending, err := s.fetchUninvoicedPeriods(ctx, s.batchSize)
	if err != nil {
		s.log.Error("failed to fetch uninvoiced periods", zap.Error(err))
		return
	}
	for _, work := range pending {
		if _, err := s.invoiceSvc.Generate(ctx, work.OrgID, invoicedomain.GenerateRequest{
			SubscriptionID: work.ID,
			PeriodStart:    work.PeriodStart,
			PeriodEnd:      work.PeriodEnd,
			FreeCycle:      work.FreeCycle,
		}); err != nil {
			s.log.Error("invoice generation failed",
				zap.String("subscription_id", work.ID.String()),
				zap.Error(err),
			)
		}
	}
}

// SweepTrials activates subscriptions whose trial window has elapsed.
func (s *Scheduler) SweepTrials(ctx context.Context) {
	now := s.clock.Now()
	ended, err := s.fetchEndedTrials(ctx, now, s.batchSize)
	if err != nil {
		s.log.Error("failed to fetch ended trials", zap.Error(err))
		return
	}

	for _, work := range ended {
		if _, err := s.subSvc.EndTrial(ctx, work.OrgID, work.ID); err != nil {
			if errors.Is(err, subscriptiondomain.ErrInvalidTransition) ||
				errors.Is(err, subscriptiondomain.ErrTrialNotEnded) {
				continue
			}
			s.log.Error("trial end failed",
				zap.String("subscription_id", work.ID.String()),
				zap.Error(err),
			)
		}
	}
}

// SweepOverdue flags finalized invoices past their due date, which also
// pushes their subscriptions to past_due.
func (s *Scheduler) SweepOverdue(ctx context.Context) {
	now := s.clock.Now()
	due, err := s.fetchOverdueInvoices(ctx, now, s.batchSize)
	if err != nil {
		s.log.Error("failed to fetch overdue invoices", zap.Error(err))
		return
	}

	for _, work := range due {
		if _, err := s.invoiceSvc.MarkOverdue(ctx, work.OrgID, work.ID); err != nil {
			if errors.Is(err, invoicedomain.ErrInvalidTransition) {
				continue
			}
			s.log.Error("overdue sweep failed",
				zap.String("invoice_id", work.ID.String()),
				zap.Error(err),
			)
		}
	}
}

type workItem struct {
	ID    snowflake.ID
	OrgID snowflake.ID
}

type periodItem struct {
	ID          snowflake.ID
	OrgID       snowflake.ID
	PeriodStart time.Time
	PeriodEnd   time.Time
	FreeCycle   bool
}
