package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	activitydomain "github.com/smallbiznis/deskflow/internal/activity/domain"
	catalogdomain "github.com/smallbiznis/deskflow/internal/catalog/domain"
	"github.com/smallbiznis/deskflow/internal/clock"
	"github.com/smallbiznis/deskflow/internal/config"
	coupondomain "github.com/smallbiznis/deskflow/internal/coupon/domain"
	"github.com/smallbiznis/deskflow/internal/events"
	invoicedomain "github.com/smallbiznis/deskflow/internal/invoice/domain"
	"github.com/smallbiznis/deskflow/internal/observability/metrics"
	"github.com/smallbiznis/deskflow/internal/orgcontext"
	pricingdomain "github.com/smallbiznis/deskflow/internal/pricing/domain"
	subscriptiondomain "github.com/smallbiznis/deskflow/internal/subscription/domain"
	usagedomain "github.com/smallbiznis/deskflow/internal/usage/domain"
	"github.com/smallbiznis/deskflow/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Config     config.Config
	SubSvc     subscriptiondomain.Service
	PricingSvc pricingdomain.Service
	UsageSvc   usagedomain.Service
	Tax        invoicedomain.TaxCalculator
	Activity   activitydomain.Recorder
	Outbox     *events.Outbox
	Metrics    *metrics.BillingMetrics
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID      *snowflake.Node
	clock      clock.Clock
	netTerms   config.BillingConfig
	subSvc     subscriptiondomain.Service
	pricingSvc pricingdomain.Service
	usageSvc   usagedomain.Service
	tax        invoicedomain.TaxCalculator
	activity   activitydomain.Recorder
	outbox     *events.Outbox
	metrics    *metrics.BillingMetrics
}

func NewService(p ServiceParam) invoicedomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("invoice.service"),

		genID:      p.GenID,
		clock:      p.Clock,
		netTerms:   p.Config.Billing,
		subSvc:     p.SubSvc,
		pricingSvc: p.PricingSvc,
		usageSvc:   p.UsageSvc,
		tax:        p.Tax,
		activity:   p.Activity,
		outbox:     p.Outbox,
		metrics:    p.Metrics,
	}
}

func (s *Service) Generate(ctx context.Context, orgID snowflake.ID, req invoicedomain.GenerateRequest) (*invoicedomain.Invoice, error) {
	if !req.PeriodEnd.After(req.PeriodStart) {
		return nil, invoicedomain.ErrInvalidPeriod
	}

	sub, err := s.subSvc.GetByID(ctx, orgID, req.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.Status == subscriptiondomain.StatusCanceled {
		return nil, invoicedomain.ErrSubscriptionGone
	}

	addOnIDs, err := s.subSvc.ListAddOnIDs(ctx, orgID, sub.ID)
	if err != nil {
		return nil, err
	}
	rawAddOnIDs := make([]string, 0, len(addOnIDs))
	for _, id := range addOnIDs {
		rawAddOnIDs = append(rawAddOnIDs, id.String())
	}

	resolved, err := s.pricingSvc.Resolve(ctx, pricingdomain.ResolveRequest{
		PlanID:    sub.PlanID.String(),
		Cycle:     catalogdomain.BillingInterval(sub.BillingCycle),
		Seats:     sub.Seats,
		Region:    sub.Region,
		AddOnIDs:  rawAddOnIDs,
		FreeCycle: req.FreeCycle,
	})
	if err != nil {
		return nil, err
	}

	recurring := resolved.RecurringChargeCents
	if !req.FreeCycle && sub.CouponID != nil {
		recurring, err = s.applyCouponDiscount(ctx, orgID, *sub.CouponID, recurring)
		if err != nil {
			return nil, err
		}
	}

	// Seat-priced plans with more than one seat itemize the seat block on
	// its own line; the recurring line keeps the remainder (base plus
	// billed_with_main add-ons). A coupon discount comes out of the
	// recurring line first and spills into the seat line only if it has to.
	seatTotal := int64(0)
	if !req.FreeCycle && resolved.PerSeatCents > 0 && sub.Seats > 1 {
		seatTotal = resolved.PerSeatCents * sub.Seats
	}
	baseTotal := recurring - seatTotal
	if baseTotal < 0 {
		seatTotal += baseTotal
		baseTotal = 0
	}

	lineItems := []invoicedomain.LineItem{{
		Kind:           invoicedomain.LineRecurring,
		Description:    pricingdomain.RecurringDescription(resolved.PlanName, catalogdomain.BillingInterval(sub.BillingCycle)),
		Quantity:       1,
		UnitPriceCents: baseTotal,
		TotalCents:     baseTotal,
	}}
	if seatTotal > 0 {
		lineItems = append(lineItems, invoicedomain.LineItem{
			Kind:           invoicedomain.LineSeat,
			Description:    fmt.Sprintf("Seats (%d)", sub.Seats),
			Quantity:       sub.Seats,
			UnitPriceCents: resolved.PerSeatCents,
			TotalCents:     seatTotal,
		})
	}

	for _, addOn := range resolved.ConsumableAddOns {
		if addOn.UsageMeterID == nil {
			continue
		}
		quantity, err := s.usageSvc.AggregateForPeriod(ctx, orgID, sub.ID, *addOn.UsageMeterID, req.PeriodStart, req.PeriodEnd)
		if err != nil {
			return nil, err
		}
		if quantity == 0 {
			continue
		}
		lineItems = append(lineItems, invoicedomain.LineItem{
			Kind:           invoicedomain.LineAddOn,
			Description:    addOn.Name,
			Quantity:       quantity,
			UnitPriceCents: addOn.UnitPriceCents,
			TotalCents:     quantity * addOn.UnitPriceCents,
		})
	}

	for _, component := range resolved.UsageComponents {
		quantity, err := s.usageSvc.AggregateForPeriod(ctx, orgID, sub.ID, component.UsageMeterID, req.PeriodStart, req.PeriodEnd)
		if err != nil {
			return nil, err
		}
		charge, err := pricingdomain.CalculateTieredCharge(quantity, component.Tiers)
		if err != nil {
			return nil, err
		}
		lineItems = append(lineItems, invoicedomain.LineItem{
			Kind:           invoicedomain.LineUsage,
			Description:    fmt.Sprintf("Metered usage (%s)", component.UsageMeterID),
			Quantity:       quantity,
			UnitPriceCents: 0,
			TotalCents:     charge,
		})
	}

	var subtotal int64
	for _, item := range lineItems {
		subtotal += item.TotalCents
	}
	taxCents, err := s.tax.Calculate(ctx, orgID, subtotal)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	inv := &invoicedomain.Invoice{
		ID:             s.genID.Generate(),
		OrgID:          orgID,
		CustomerOrgID:  sub.CustomerOrgID,
		SubscriptionID: sub.ID,
		Status:         invoicedomain.StatusDraft,
		Currency:       resolved.Currency,
		PeriodStart:    req.PeriodStart,
		PeriodEnd:      req.PeriodEnd,
		LineItems:      datatypes.NewJSONType(lineItems),
		SubtotalCents:  subtotal,
		TaxCents:       taxCents,
		TotalCents:     subtotal + taxCents,
		IssuedAt:       now,
		DueAt:          now.Add(s.netTerms.InvoiceNetTerms),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	inv.Number = "INV-" + inv.ID.String()

	var existing *invoicedomain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// One invoice per subscription period; regenerating returns the
		// invoice that already covers it.
		var found invoicedomain.Invoice
		err := tx.WithContext(ctx).
			Where("subscription_id = ? AND period_end = ?", sub.ID, req.PeriodEnd).
			First(&found).Error
		if err == nil {
			existing = &found
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := tx.WithContext(ctx).Create(inv).Error; err != nil {
			return err
		}

		if err := s.activity.RecordTx(ctx, tx, activitydomain.Transition{
			OrgID:       orgID,
			SubjectType: activitydomain.SubjectInvoice,
			SubjectID:   inv.ID,
			Action:      "invoice.generated",
			NewStatus:   string(invoicedomain.StatusDraft),
			Metadata: map[string]any{
				"subscription_id": sub.ID.String(),
				"total_cents":     inv.TotalCents,
			},
		}); err != nil {
			return err
		}

		return s.outbox.PublishTx(ctx, tx, events.Event{
			OrgID: orgID,
			Type:  events.EventInvoiceGenerated,
			Payload: events.InvoicePayload{
				InvoiceID:      inv.ID.String(),
				SubscriptionID: sub.ID.String(),
				TotalCents:     inv.TotalCents,
				Currency:       inv.Currency,
			}.ToMap(),
			DedupeKey: "invoice_generated:" + inv.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	s.metrics.InvoiceGenerated()
	return inv, nil
}

func (s *Service) GetByID(ctx context.Context, orgID, id snowflake.ID) (*invoicedomain.Invoice, error) {
	var inv invoicedomain.Invoice
	err := s.db.WithContext(ctx).
		Where("id = ? AND org_id = ?", id, orgID).
		First(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invoicedomain.ErrInvoiceNotFound
		}
		return nil, err
	}
	return &inv, nil
}

func (s *Service) List(ctx context.Context, page, pageSize int) ([]invoicedomain.Invoice, int64, error) {
	orgID, err := orgcontext.OrgID(ctx)
	if err != nil {
		return nil, 0, err
	}

	page, pageSize = pagination.Normalize(page, pageSize)
	var total int64
	if err := s.db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Where("org_id = ?", orgID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var invoices []invoicedomain.Invoice
	err = s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("issued_at DESC, id DESC").
		Offset(pagination.Offset(page, pageSize)).
		Limit(pageSize).
		Find(&invoices).Error
	if err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

func (s *Service) Finalize(ctx context.Context, orgID, id snowflake.ID) (*invoicedomain.Invoice, error) {
	now := s.clock.Now()
	return s.transition(ctx, orgID, id, invoicedomain.StatusFinal, "invoice.finalized", events.EventInvoiceFinalized, func(inv *invoicedomain.Invoice) error {
		if inv.Status != invoicedomain.StatusDraft {
			return invoicedomain.ErrInvoiceNotDraft
		}
		inv.FinalizedAt = &now
		return nil
	})
}

func (s *Service) MarkPaid(ctx context.Context, orgID, id snowflake.ID) (*invoicedomain.Invoice, error) {
	now := s.clock.Now()
	var result *invoicedomain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err := s.transitionTx(ctx, tx, orgID, id, invoicedomain.StatusPaid, "invoice.paid", events.EventInvoicePaid, func(inv *invoicedomain.Invoice) error {
			inv.PaidAt = &now
			return nil
		})
		if err != nil {
			return err
		}

		// Payment unblocks the subscription in the same commit: the first
		// payment activates a draft subscription, and any payment clears
		// past_due.
		var sub subscriptiondomain.Subscription
		if err := tx.WithContext(ctx).
			Where("id = ? AND org_id = ?", inv.SubscriptionID, orgID).
			First(&sub).Error; err != nil {
			return err
		}
		switch sub.Status {
		case subscriptiondomain.StatusDraft:
			if _, err := s.subSvc.ActivateOnPaymentTx(ctx, tx, orgID, sub.ID); err != nil {
				return err
			}
		case subscriptiondomain.StatusPastDue:
			if _, err := s.subSvc.MarkPastDueResolvedTx(ctx, tx, orgID, sub.ID); err != nil {
				return err
			}
		}

		result = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.InvoiceTransition(string(invoicedomain.StatusPaid))
	return result, nil
}

func (s *Service) MarkOverdue(ctx context.Context, orgID, id snowflake.ID) (*invoicedomain.Invoice, error) {
	now := s.clock.Now()
	inv, err := s.transition(ctx, orgID, id, invoicedomain.StatusOverdue, "invoice.overdue", "", func(inv *invoicedomain.Invoice) error {
		if now.Before(inv.DueAt) {
			return invoicedomain.ErrInvoiceNotDue
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sub, err := s.subSvc.GetByID(ctx, orgID, inv.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.Status == subscriptiondomain.StatusActive {
		if _, err := s.subSvc.MarkPastDue(ctx, orgID, sub.ID); err != nil {
			return nil, err
		}
	}
	return inv, nil
}

func (s *Service) Void(ctx context.Context, orgID, id snowflake.ID, reason string) (*invoicedomain.Invoice, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, invoicedomain.ErrMissingVoidReason
	}
	now := s.clock.Now()
	return s.transition(ctx, orgID, id, invoicedomain.StatusCanceled, "invoice.voided", events.EventInvoiceVoided, func(inv *invoicedomain.Invoice) error {
		inv.VoidedAt = &now
		inv.VoidReason = &reason
		return nil
	})
}

func (s *Service) transition(
	ctx context.Context,
	orgID, id snowflake.ID,
	to invoicedomain.InvoiceStatus,
	action string,
	eventType string,
	mutate func(*invoicedomain.Invoice) error,
) (*invoicedomain.Invoice, error) {
	var result *invoicedomain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = s.transitionTx(ctx, tx, orgID, id, to, action, eventType, mutate)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.InvoiceTransition(string(to))
	return result, nil
}

func (s *Service) transitionTx(
	ctx context.Context,
	tx *gorm.DB,
	orgID, id snowflake.ID,
	to invoicedomain.InvoiceStatus,
	action string,
	eventType string,
	mutate func(*invoicedomain.Invoice) error,
) (*invoicedomain.Invoice, error) {
	var inv invoicedomain.Invoice
	err := tx.WithContext(ctx).
		Where("id = ? AND org_id = ?", id, orgID).
		First(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invoicedomain.ErrInvoiceNotFound
		}
		return nil, err
	}
	if !invoicedomain.CanTransition(inv.Status, to) {
		return nil, invoicedomain.ErrInvalidTransition
	}
	oldStatus := inv.Status
	if mutate != nil {
		if err := mutate(&inv); err != nil {
			return nil, err
		}
	}
	inv.Status = to
	inv.UpdatedAt = s.clock.Now()
	if err := tx.WithContext(ctx).Save(&inv).Error; err != nil {
		return nil, err
	}

	if err := s.activity.RecordTx(ctx, tx, activitydomain.Transition{
		OrgID:       orgID,
		SubjectType: activitydomain.SubjectInvoice,
		SubjectID:   inv.ID,
		Action:      action,
		OldStatus:   string(oldStatus),
		NewStatus:   string(to),
	}); err != nil {
		return nil, err
	}

	if eventType != "" {
		if err := s.outbox.PublishTx(ctx, tx, events.Event{
			OrgID: orgID,
			Type:  eventType,
			Payload: events.InvoicePayload{
				InvoiceID:      inv.ID.String(),
				SubscriptionID: inv.SubscriptionID.String(),
				TotalCents:     inv.TotalCents,
				Currency:       inv.Currency,
			}.ToMap(),
			DedupeKey: action + ":" + inv.ID.String(),
		}); err != nil {
			return nil, err
		}
	}

	return &inv, nil
}

// applyCouponDiscount re-applies an amount-transforming coupon attached at
// subscription creation. free_months and trial_extension never transform the
// amount here.
func (s *Service) applyCouponDiscount(ctx context.Context, orgID, couponID snowflake.ID, amountCents int64) (int64, error) {
	var coupon coupondomain.Coupon
	err := s.db.WithContext(ctx).
		Where("id = ? AND org_id = ?", couponID, orgID).
		First(&coupon).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return amountCents, nil
		}
		return 0, err
	}
	return coupondomain.ApplyDiscount(coupon.DiscountType, coupon.DiscountValue, amountCents), nil
}
