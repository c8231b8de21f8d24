package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	activitydomain "github.com/smallbiznis/deskflow/internal/activity/domain"
	catalogdomain "github.com/smallbiznis/deskflow/internal/catalog/domain"
	"github.com/smallbiznis/deskflow/internal/clock"
	coupondomain "github.com/smallbiznis/deskflow/internal/coupon/domain"
	"github.com/smallbiznis/deskflow/internal/events"
	"github.com/smallbiznis/deskflow/internal/observability/metrics"
	"github.com/smallbiznis/deskflow/internal/orgcontext"
	pricingdomain "github.com/smallbiznis/deskflow/internal/pricing/domain"
	subscriptiondomain "github.com/smallbiznis/deskflow/internal/subscription/domain"
	"github.com/smallbiznis/deskflow/pkg/db/pagination"
	"github.com/smallbiznis/deskflow/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	CatalogSvc catalogdomain.Service
	PricingSvc pricingdomain.Service
	CouponSvc  coupondomain.Service
	Activity   activitydomain.Recorder
	Outbox     *events.Outbox
	Metrics    *metrics.BillingMetrics
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID      *snowflake.Node
	clock      clock.Clock
	catalogSvc catalogdomain.Service
	pricingSvc pricingdomain.Service
	couponSvc  coupondomain.Service
	activity   activitydomain.Recorder
	outbox     *events.Outbox
	metrics    *metrics.BillingMetrics
	subrepo    repository.Repository[subscriptiondomain.Subscription]
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("subscription.service"),

		genID:      p.GenID,
		clock:      p.Clock,
		catalogSvc: p.CatalogSvc,
		pricingSvc: p.PricingSvc,
		couponSvc:  p.CouponSvc,
		activity:   p.Activity,
		outbox:     p.Outbox,
		metrics:    p.Metrics,
		subrepo:    repository.ProvideStore[subscriptiondomain.Subscription](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req subscriptiondomain.CreateSubscriptionRequest) (*subscriptiondomain.Subscription, error) {
	orgID, err := orgcontext.OrgID(ctx)
	if err != nil {
		return nil, err
	}

	customerOrgID, err := parseID(req.CustomerOrgID, subscriptiondomain.ErrInvalidCustomer)
	if err != nil {
		return nil, err
	}
	planID, err := parseID(req.PlanID, subscriptiondomain.ErrInvalidPlan)
	if err != nil {
		return nil, err
	}
	if req.BillingCycle != subscriptiondomain.CycleMonthly && req.BillingCycle != subscriptiondomain.CycleYearly {
		return nil, subscriptiondomain.ErrInvalidCycle
	}
	if req.Seats < 1 {
		return nil, subscriptiondomain.ErrInvalidSeats
	}
	switch req.CollectionMethod {
	case subscriptiondomain.CollectionAutomatic, subscriptiondomain.CollectionSendInvoice:
	default:
		return nil, subscriptiondomain.ErrInvalidCollectionMethod
	}

	plan, err := s.catalogSvc.GetPlan(ctx, orgID, planID)
	if err != nil {
		return nil, err
	}
	if plan.Status != catalogdomain.PlanStatusActive {
		return nil, subscriptiondomain.ErrPlanNotSubscribable
	}

	resolved, err := s.pricingSvc.Resolve(ctx, pricingdomain.ResolveRequest{
		PlanID:     req.PlanID,
		Cycle:      catalogdomain.BillingInterval(req.BillingCycle),
		Seats:      req.Seats,
		Region:     req.Region,
		AddOnIDs:   req.AddOnIDs,
		CouponCode: req.CouponCode,
	})
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()

	var coupon *coupondomain.Coupon
	var freeMonths int64
	var trialExtensionDays int64
	if req.CouponCode != nil && strings.TrimSpace(*req.CouponCode) != "" {
		coupon, err = s.couponSvc.GetByCode(ctx, orgID, *req.CouponCode)
		if err != nil {
			return nil, err
		}
		if err := coupondomain.Validate(coupon, planID, now); err != nil {
			return nil, err
		}
		switch coupon.DiscountType {
		case coupondomain.DiscountFreeMonths:
			freeMonths = coupon.DiscountValue
		case coupondomain.DiscountTrialExtension:
			trialExtensionDays = coupon.DiscountValue
		}
	}

	var dealID *snowflake.ID
	if req.DealID != nil {
		parsed, err := parseID(*req.DealID, subscriptiondomain.ErrInvalidPlan)
		if err != nil {
			return nil, err
		}
		dealID = &parsed
	}

	status := subscriptiondomain.StatusActive
	var trialEndsAt *time.Time
	var activatedAt *time.Time
	switch {
	case req.CollectionMethod == subscriptiondomain.CollectionSendInvoice:
		// Sales-led: activation waits for the first invoice to be paid.
		status = subscriptiondomain.StatusDraft
	case plan.TrialDays > 0 || trialExtensionDays > 0:
		status = subscriptiondomain.StatusTrial
		ends := now.AddDate(0, 0, plan.TrialDays+int(trialExtensionDays))
		trialEndsAt = &ends
	default:
		activatedAt = &now
	}

	subscription := &subscriptiondomain.Subscription{
		ID:                  s.genID.Generate(),
		OrgID:               orgID,
		CustomerOrgID:       customerOrgID,
		PlanID:              planID,
		Status:              status,
		CollectionMethod:    req.CollectionMethod,
		BillingCycle:        req.BillingCycle,
		CurrentPeriodStart:  now,
		CurrentPeriodEnd:    addCycle(now, req.BillingCycle),
		Seats:               req.Seats,
		Region:              req.Region,
		MRRCents:            resolved.MRRCents,
		Currency:            resolved.Currency,
		FreeMonthsRemaining: freeMonths,
		TrialEndsAt:         trialEndsAt,
		DealID:              dealID,
		ActivatedAt:         activatedAt,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if coupon != nil {
		subscription.CouponID = &coupon.ID
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Check-and-insert inside one transaction; the partial unique index
		// on blocking statuses backs this under concurrent creates.
		var blocking int64
		if err := tx.WithContext(ctx).Raw(
			`SELECT COUNT(1)
			 FROM subscriptions
			 WHERE org_id = ? AND customer_org_id = ? AND status IN (?, ?, ?)`,
			orgID,
			customerOrgID,
			subscriptiondomain.StatusActive,
			subscriptiondomain.StatusTrial,
			subscriptiondomain.StatusPastDue,
		).Scan(&blocking).Error; err != nil {
			return err
		}
		if blocking > 0 {
			return subscriptiondomain.ErrActiveSubscriptionExists
		}

		if err := s.subrepo.CreateTx(ctx, tx, subscription); err != nil {
			return err
		}

		for _, raw := range req.AddOnIDs {
			addOnID, err := parseID(raw, catalogdomain.ErrInvalidAddOnID)
			if err != nil {
				return err
			}
			selected := subscriptiondomain.SelectedAddOn{
				ID:             s.genID.Generate(),
				OrgID:          orgID,
				SubscriptionID: subscription.ID,
				AddOnID:        addOnID,
				CreatedAt:      now,
			}
			if err := tx.WithContext(ctx).Create(&selected).Error; err != nil {
				return err
			}
		}

		if coupon != nil {
			if err := s.couponSvc.Redeem(ctx, tx, coupon.ID); err != nil {
				return err
			}
		}

		if err := s.activity.RecordTx(ctx, tx, activitydomain.Transition{
			OrgID:       orgID,
			SubjectType: activitydomain.SubjectSubscription,
			SubjectID:   subscription.ID,
			Action:      "subscription.created",
			NewStatus:   string(status),
			Metadata: map[string]any{
				"plan_id":   planID.String(),
				"mrr_cents": resolved.MRRCents,
			},
		}); err != nil {
			return err
		}

		return s.outbox.PublishTx(ctx, tx, events.Event{
			OrgID: orgID,
			Type:  events.EventSubscriptionCreated,
			Payload: events.SubscriptionPayload{
				SubscriptionID: subscription.ID.String(),
				CustomerOrgID:  customerOrgID.String(),
				PlanID:         planID.String(),
				NewStatus:      string(status),
			}.ToMap(),
			DedupeKey: "subscription_created:" + subscription.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.SubscriptionCreated(string(req.BillingCycle))
	s.metrics.AddMRR(resolved.MRRCents)
	return subscription, nil
}

func (s *Service) GetByID(ctx context.Context, orgID, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	subscription, err := s.subrepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, subscriptiondomain.ErrSubscriptionNotFound
		}
		return nil, err
	}
	if subscription.OrgID != orgID {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}
	return subscription, nil
}

func (s *Service) List(ctx context.Context, page, pageSize int) ([]subscriptiondomain.Subscription, int64, error) {
	orgID, err := orgcontext.OrgID(ctx)
	if err != nil {
		return nil, 0, err
	}

	page, pageSize = pagination.Normalize(page, pageSize)
	var total int64
	if err := s.db.WithContext(ctx).
		Model(&subscriptiondomain.Subscription{}).
		Where("org_id = ?", orgID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var subscriptions []subscriptiondomain.Subscription
	err = s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at DESC, id DESC").
		Offset(pagination.Offset(page, pageSize)).
		Limit(pageSize).
		Find(&subscriptions).Error
	if err != nil {
		return nil, 0, err
	}
	return subscriptions, total, nil
}

func (s *Service) ListAddOnIDs(ctx context.Context, orgID, subscriptionID snowflake.ID) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := s.db.WithContext(ctx).Raw(
		`SELECT add_on_id
		 FROM subscription_add_ons
		 WHERE org_id = ? AND subscription_id = ?
		 ORDER BY id ASC`,
		orgID,
		subscriptionID,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ActivateOnPayment transitions draft → active once the gating invoice is
// paid, appending exactly one activity record.
func (s *Service) ActivateOnPayment(ctx context.Context, orgID, subscriptionID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var result *subscriptiondomain.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = s.ActivateOnPaymentTx(ctx, tx, orgID, subscriptionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ActivateOnPaymentTx runs the draft → active transition inside the caller's
// transaction, so paying the gating invoice and activating the subscription
// commit together.
func (s *Service) ActivateOnPaymentTx(ctx context.Context, tx *gorm.DB, orgID, subscriptionID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	now := s.clock.Now()
	return s.transitionTx(ctx, tx, orgID, subscriptionID, subscriptiondomain.StatusActive, "subscription.activated", func(sub *subscriptiondomain.Subscription) error {
		if sub.Status != subscriptiondomain.StatusDraft {
			return subscriptiondomain.ErrInvalidTransition
		}
		sub.ActivatedAt = &now
		return nil
	})
}

func (s *Service) RollPeriod(ctx context.Context, orgID, subscriptionID snowflake.ID) (*subscriptiondomain.RolledPeriod, error) {
	now := s.clock.Now()

	var rolled *subscriptiondomain.RolledPeriod
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := s.lockSubscription(ctx, tx, orgID, subscriptionID)
		if err != nil {
			return err
		}
		switch sub.Status {
		case subscriptiondomain.StatusActive, subscriptiondomain.StatusTrial, subscriptiondomain.StatusPastDue:
		default:
			return subscriptiondomain.ErrInvalidTransition
		}
		if now.Before(sub.CurrentPeriodEnd) {
			return subscriptiondomain.ErrPeriodNotEnded
		}

		closed := subscriptiondomain.RolledPeriod{
			SubscriptionID: sub.ID,
			PeriodStart:    sub.CurrentPeriodStart,
			PeriodEnd:      sub.CurrentPeriodEnd,
			FreeCycle:      sub.FreeMonthsRemaining > 0,
		}

		newStart := sub.CurrentPeriodEnd
		newEnd := addCycle(newStart, sub.BillingCycle)
		freeMonths := sub.FreeMonthsRemaining
		if freeMonths > 0 {
			freeMonths--
		}

		if err := tx.WithContext(ctx).Exec(
			`UPDATE subscriptions
			 SET current_period_start = ?, current_period_end = ?, free_months_remaining = ?,
			     last_closed_period_start = ?, last_closed_period_end = ?, last_closed_free_cycle = ?,
			     updated_at = ?
			 WHERE id = ? AND current_period_end = ?`,
			newStart,
			newEnd,
			freeMonths,
			closed.PeriodStart,
			closed.PeriodEnd,
			closed.FreeCycle,
			now,
			sub.ID,
			closed.PeriodEnd,
		).Error; err != nil {
			return err
		}

		if err := s.activity.RecordTx(ctx, tx, activitydomain.Transition{
			OrgID:       orgID,
			SubjectType: activitydomain.SubjectSubscription,
			SubjectID:   sub.ID,
			Action:      "subscription.period_rolled",
			Metadata: map[string]any{
				"period_start": closed.PeriodStart.UTC().Format(time.RFC3339),
				"period_end":   closed.PeriodEnd.UTC().Format(time.RFC3339),
			},
		}); err != nil {
			return err
		}

		rolled = &closed
		return s.outbox.PublishTx(ctx, tx, events.Event{
			OrgID: orgID,
			Type:  events.EventPeriodRolled,
			Payload: events.SubscriptionPayload{
				SubscriptionID: sub.ID.String(),
				CustomerOrgID:  sub.CustomerOrgID.String(),
			}.ToMap(),
			DedupeKey: "period_rolled:" + sub.ID.String() + ":" + closed.PeriodEnd.UTC().Format(time.RFC3339),
		})
	})
	if err != nil {
		return nil, err
	}
	return rolled, nil
}

func (s *Service) EndTrial(ctx context.Context, orgID, subscriptionID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	now := s.clock.Now()
	return s.transition(ctx, orgID, subscriptionID, subscriptiondomain.StatusActive, "subscription.trial_ended", func(sub *subscriptiondomain.Subscription) error {
		if sub.Status != subscriptiondomain.StatusTrial {
			return subscriptiondomain.ErrInvalidTransition
		}
		if sub.TrialEndsAt != nil && now.Before(*sub.TrialEndsAt) {
			return subscriptiondomain.ErrTrialNotEnded
		}
		if sub.ActivatedAt == nil {
			sub.ActivatedAt = &now
		}
		return nil
	})
}

func (s *Service) MarkPastDue(ctx context.Context, orgID, subscriptionID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	return s.transition(ctx, orgID, subscriptionID, subscriptiondomain.StatusPastDue, "subscription.past_due", nil)
}

func (s *Service) MarkPastDueResolved(ctx context.Context, orgID, subscriptionID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var result *subscriptiondomain.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = s.MarkPastDueResolvedTx(ctx, tx, orgID, subscriptionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkPastDueResolvedTx runs the past_due → active transition inside the
// caller's transaction.
func (s *Service) MarkPastDueResolvedTx(ctx context.Context, tx *gorm.DB, orgID, subscriptionID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	return s.transitionTx(ctx, tx, orgID, subscriptionID, subscriptiondomain.StatusActive, "subscription.past_due_resolved", func(sub *subscriptiondomain.Subscription) error {
		if sub.Status != subscriptiondomain.StatusPastDue {
			return subscriptiondomain.ErrInvalidTransition
		}
		return nil
	})
}

func (s *Service) Cancel(ctx context.Context, orgID, subscriptionID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	now := s.clock.Now()
	sub, err := s.transition(ctx, orgID, subscriptionID, subscriptiondomain.StatusCanceled, "subscription.canceled", func(sub *subscriptiondomain.Subscription) error {
		sub.CanceledAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.AddMRR(-sub.MRRCents)
	return sub, nil
}

func (s *Service) Pause(ctx context.Context, orgID, subscriptionID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	return s.transition(ctx, orgID, subscriptionID, subscriptiondomain.StatusPaused, "subscription.paused", nil)
}

func (s *Service) Resume(ctx context.Context, orgID, subscriptionID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	return s.transition(ctx, orgID, subscriptionID, subscriptiondomain.StatusActive, "subscription.resumed", func(sub *subscriptiondomain.Subscription) error {
		if sub.Status != subscriptiondomain.StatusPaused {
			return subscriptiondomain.ErrInvalidTransition
		}
		return nil
	})
}

// transition applies one status change under the status machine and appends
// a single activity record with the old and new status.
func (s *Service) transition(
	ctx context.Context,
	orgID, subscriptionID snowflake.ID,
	to subscriptiondomain.SubscriptionStatus,
	action string,
	mutate func(*subscriptiondomain.Subscription) error,
) (*subscriptiondomain.Subscription, error) {
	var result *subscriptiondomain.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = s.transitionTx(ctx, tx, orgID, subscriptionID, to, action, mutate)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// transitionTx is transition running inside a caller-owned transaction, so
// other services can make a subscription change atomic with their own writes.
func (s *Service) transitionTx(
	ctx context.Context,
	tx *gorm.DB,
	orgID, subscriptionID snowflake.ID,
	to subscriptiondomain.SubscriptionStatus,
	action string,
	mutate func(*subscriptiondomain.Subscription) error,
) (*subscriptiondomain.Subscription, error) {
	sub, err := s.lockSubscription(ctx, tx, orgID, subscriptionID)
	if err != nil {
		return nil, err
	}
	if !subscriptiondomain.CanTransition(sub.Status, to) {
		return nil, subscriptiondomain.ErrInvalidTransition
	}
	oldStatus := sub.Status
	if mutate != nil {
		if err := mutate(sub); err != nil {
			return nil, err
		}
	}
	sub.Status = to
	sub.UpdatedAt = s.clock.Now()
	if err := tx.WithContext(ctx).Save(sub).Error; err != nil {
		return nil, err
	}

	if err := s.activity.RecordTx(ctx, tx, activitydomain.Transition{
		OrgID:       orgID,
		SubjectType: activitydomain.SubjectSubscription,
		SubjectID:   sub.ID,
		Action:      action,
		OldStatus:   string(oldStatus),
		NewStatus:   string(to),
	}); err != nil {
		return nil, err
	}

	eventType := lifecycleEventType(to)
	if eventType != "" {
		if err := s.outbox.PublishTx(ctx, tx, events.Event{
			OrgID: orgID,
			Type:  eventType,
			Payload: events.SubscriptionPayload{
				SubscriptionID: sub.ID.String(),
				CustomerOrgID:  sub.CustomerOrgID.String(),
				OldStatus:      string(oldStatus),
				NewStatus:      string(to),
			}.ToMap(),
			DedupeKey: action + ":" + sub.ID.String() + ":" + string(oldStatus),
		}); err != nil {
			return nil, err
		}
	}

	return sub, nil
}

func (s *Service) lockSubscription(ctx context.Context, tx *gorm.DB, orgID, subscriptionID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var sub subscriptiondomain.Subscription
	err := tx.WithContext(ctx).
		Where("id = ? AND org_id = ?", subscriptionID, orgID).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, subscriptiondomain.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func lifecycleEventType(to subscriptiondomain.SubscriptionStatus) string {
	switch to {
	case subscriptiondomain.StatusActive:
		return events.EventSubscriptionActivated
	case subscriptiondomain.StatusCanceled:
		return events.EventSubscriptionCanceled
	default:
		return ""
	}
}

func addCycle(from time.Time, cycle subscriptiondomain.BillingCycle) time.Time {
	if cycle == subscriptiondomain.CycleYearly {
		return from.AddDate(1, 0, 0)
	}
	return from.AddDate(0, 1, 0)
}

func parseID(value string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil {
		return 0, invalid
	}
	return id, nil
}
