package scheduler

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	activityrepository "github.com/smallbiznis/deskflow/internal/activity/repository"
	catalogdomain "github.com/smallbiznis/deskflow/internal/catalog/domain"
	catalogservice "github.com/smallbiznis/deskflow/internal/catalog/service"
	"github.com/smallbiznis/deskflow/internal/config"
	coupondomain "github.com/smallbiznis/deskflow/internal/coupon/domain"
	couponservice "github.com/smallbiznis/deskflow/internal/coupon/service"
	"github.com/smallbiznis/deskflow/internal/events"
	invoicedomain "github.com/smallbiznis/deskflow/internal/invoice/domain"
	invoiceservice "github.com/smallbiznis/deskflow/internal/invoice/service"
	"github.com/smallbiznis/deskflow/internal/migration"
	"github.com/smallbiznis/deskflow/internal/orgcontext"
	pricingservice "github.com/smallbiznis/deskflow/internal/pricing/service"
	subscriptiondomain "github.com/smallbiznis/deskflow/internal/subscription/domain"
	subscriptionservice "github.com/smallbiznis/deskflow/internal/subscription/service"
	usageservice "github.com/smallbiznis/deskflow/internal/usage/service"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testOrgID = snowflake.ID(1)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

type schedulerFixture struct {
	ctx        context.Context
	clk        *testClock
	db         *gorm.DB
	catalogSvc catalogdomain.Service
	couponSvc  coupondomain.Service
	subSvc     subscriptiondomain.Service
	invoiceSvc invoicedomain.Service
	sched      *Scheduler
}

func setupSchedulerTest(t *testing.T) *schedulerFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := migration.Run(context.Background(), db, zap.NewNop()); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new snowflake node: %v", err)
	}

	clk := &testClock{now: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	cfg := config.Config{Billing: config.BillingConfig{
		InvoiceNetTerms:    14 * 24 * time.Hour,
		PlanCacheTTL:       time.Minute,
		SchedulerSpec:      "@every 1m",
		SchedulerBatchSize: 100,
	}}
	outbox := events.NewOutbox(db, node)

	catalogSvc := catalogservice.NewService(catalogservice.ServiceParam{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: clk, Cfg: cfg,
	})
	couponSvc := couponservice.NewService(couponservice.ServiceParam{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: clk,
	})
	pricingSvc := pricingservice.NewService(pricingservice.ServiceParam{
		DB: db, Log: zap.NewNop(), Clock: clk, CatalogSvc: catalogSvc, CouponSvc: couponSvc,
	})
	activity := activityrepository.Provide(activityrepository.RecorderParam{
		DB: db, Log: zap.NewNop(), GenID: node,
	})
	subSvc := subscriptionservice.NewService(subscriptionservice.ServiceParam{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: clk,
		CatalogSvc: catalogSvc, PricingSvc: pricingSvc, CouponSvc: couponSvc,
		Activity: activity, Outbox: outbox,
	})
	usageSvc := usageservice.NewService(usageservice.ServiceParam{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: clk,
		SubSvc: subSvc, Outbox: outbox,
	})
	invoiceSvc := invoiceservice.NewService(invoiceservice.ServiceParam{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: clk, Config: cfg,
		SubSvc: subSvc, PricingSvc: pricingSvc, UsageSvc: usageSvc,
		Tax: invoicedomain.ZeroTax{}, Activity: activity, Outbox: outbox,
	})
	sched := New(SchedulerParam{
		DB: db, Log: zap.NewNop(), Config: cfg, Clock: clk,
		SubSvc: subSvc, InvoiceSvc: invoiceSvc,
	})

	return &schedulerFixture{
		ctx:        orgcontext.WithOrgID(context.Background(), testOrgID),
		clk:        clk,
		db:         db,
		catalogSvc: catalogSvc,
		couponSvc:  couponSvc,
		subSvc:     subSvc,
		invoiceSvc: invoiceSvc,
		sched:      sched,
	}
}

func (f *schedulerFixture) createPlan(t *testing.T, trialDays int) *catalogdomain.ProductPlan {
	t.Helper()
	plan, err := f.catalogSvc.CreatePlan(f.ctx, catalogdomain.CreatePlanRequest{
		Name:         "Pro",
		PricingModel: catalogdomain.PricingModelFlat,
		TrialDays:    trialDays,
	})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	interval := catalogdomain.IntervalMonthly
	if _, err := f.catalogSvc.CreatePricing(f.ctx, catalogdomain.CreatePricingRequest{
		PlanID:      plan.ID.String(),
		PricingType: catalogdomain.PricingTypeBase,
		Currency:    "USD",
		AmountCents: 9900,
		Interval:    &interval,
	}); err != nil {
		t.Fatalf("create pricing: %v", err)
	}
	if _, err := f.catalogSvc.ActivatePlan(f.ctx, plan.ID.String()); err != nil {
		t.Fatalf("activate plan: %v", err)
	}
	return plan
}

func (f *schedulerFixture) createSubscription(t *testing.T, planID snowflake.ID) *subscriptiondomain.Subscription {
	t.Helper()
	sub, err := f.subSvc.Create(f.ctx, subscriptiondomain.CreateSubscriptionRequest{
		CustomerOrgID:    snowflake.ID(2).String(),
		PlanID:           planID.String(),
		BillingCycle:     subscriptiondomain.CycleMonthly,
		Seats:            1,
		CollectionMethod: subscriptiondomain.CollectionAutomatic,
	})
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	return sub
}

func TestSweepRolloversGeneratesInvoice(t *testing.T) {
	f := setupSchedulerTest(t)
	plan := f.createPlan(t, 0)
	sub := f.createSubscription(t, plan.ID)

	f.clk.now = sub.CurrentPeriodEnd.Add(time.Hour)
	f.sched.SweepRollovers(f.ctx)

	rolled, err := f.subSvc.GetByID(f.ctx, testOrgID, sub.ID)
	if err != nil {
		t.Fatalf("reload subscription: %v", err)
	}
	if !rolled.CurrentPeriodStart.Equal(sub.CurrentPeriodEnd) {
		t.Fatalf("expected new period start %v, got %v", sub.CurrentPeriodEnd, rolled.CurrentPeriodStart)
	}

	var invoices []invoicedomain.Invoice
	if err := f.db.Where("subscription_id = ?", sub.ID).Find(&invoices).Error; err != nil {
		t.Fatalf("load invoices: %v", err)
	}
	if len(invoices) != 1 {
		t.Fatalf("expected 1 invoice after rollover, got %d", len(invoices))
	}
	if !invoices[0].PeriodStart.Equal(sub.CurrentPeriodStart.UTC()) || !invoices[0].PeriodEnd.Equal(sub.CurrentPeriodEnd.UTC()) {
		t.Fatalf("invoice covers wrong window: %v - %v", invoices[0].PeriodStart, invoices[0].PeriodEnd)
	}
}

func TestSweepRolloversIdempotent(t *testing.T) {
	f := setupSchedulerTest(t)
	plan := f.createPlan(t, 0)
	sub := f.createSubscription(t, plan.ID)

	f.clk.now = sub.CurrentPeriodEnd.Add(time.Hour)
	f.sched.SweepRollovers(f.ctx)
	f.sched.SweepRollovers(f.ctx)

	var count int64
	if err := f.db.Model(&invoicedomain.Invoice{}).Where("subscription_id = ?", sub.ID).Count(&count).Error; err != nil {
		t.Fatalf("count invoices: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 invoice after repeated sweep, got %d", count)
	}
}

func TestSweepRolloversBacksFillsMissedInvoice(t *testing.T) {
	f := setupSchedulerTest(t)
	plan := f.createPlan(t, 0)
	sub := f.createSubscription(t, plan.ID)

	// A rollover that committed without its invoice, as after a crash
	// between the roll and the generation step.
	f.clk.now = sub.CurrentPeriodEnd.Add(time.Hour)
	if _, err := f.subSvc.RollPeriod(f.ctx, testOrgID, sub.ID); err != nil {
		t.Fatalf("roll period: %v", err)
	}
	var count int64
	if err := f.db.Model(&invoicedomain.Invoice{}).Where("subscription_id = ?", sub.ID).Count(&count).Error; err != nil {
		t.Fatalf("count invoices: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no invoice before sweep, got %d", count)
	}

	f.sched.SweepRollovers(f.ctx)

	var invoices []invoicedomain.Invoice
	if err := f.db.Where("subscription_id = ?", sub.ID).Find(&invoices).Error; err != nil {
		t.Fatalf("load invoices: %v", err)
	}
	if len(invoices) != 1 {
		t.Fatalf("expected sweep to back-fill 1 invoice, got %d", len(invoices))
	}
	if !invoices[0].PeriodStart.Equal(sub.CurrentPeriodStart.UTC()) || !invoices[0].PeriodEnd.Equal(sub.CurrentPeriodEnd.UTC()) {
		t.Fatalf("invoice covers wrong window: %v - %v", invoices[0].PeriodStart, invoices[0].PeriodEnd)
	}
}

func TestSweepRolloversKeepsFreeCycleOnRetry(t *testing.T) {
	f := setupSchedulerTest(t)
	plan := f.createPlan(t, 0)

	if _, err := f.couponSvc.Create(f.ctx, coupondomain.CreateCouponRequest{
		Code:          "ONFREE",
		DiscountType:  coupondomain.DiscountFreeMonths,
		DiscountValue: 1,
	}); err != nil {
		t.Fatalf("create coupon: %v", err)
	}
	code := "ONFREE"
	sub, err := f.subSvc.Create(f.ctx, subscriptiondomain.CreateSubscriptionRequest{
		CustomerOrgID:    snowflake.ID(2).String(),
		PlanID:           plan.ID.String(),
		BillingCycle:     subscriptiondomain.CycleMonthly,
		Seats:            1,
		CollectionMethod: subscriptiondomain.CollectionAutomatic,
		CouponCode:       &code,
	})
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}

	f.clk.now = sub.CurrentPeriodEnd.Add(time.Hour)
	if _, err := f.subSvc.RollPeriod(f.ctx, testOrgID, sub.ID); err != nil {
		t.Fatalf("roll period: %v", err)
	}
	f.sched.SweepRollovers(f.ctx)

	var invoices []invoicedomain.Invoice
	if err := f.db.Where("subscription_id = ?", sub.ID).Find(&invoices).Error; err != nil {
		t.Fatalf("load invoices: %v", err)
	}
	if len(invoices) != 1 {
		t.Fatalf("expected 1 invoice, got %d", len(invoices))
	}
	if invoices[0].TotalCents != 0 {
		t.Fatalf("expected free cycle to survive the retry, got total %d", invoices[0].TotalCents)
	}
}

func TestSweepTrialsActivates(t *testing.T) {
	f := setupSchedulerTest(t)
	plan := f.createPlan(t, 14)
	sub := f.createSubscription(t, plan.ID)
	if sub.Status != subscriptiondomain.StatusTrial {
		t.Fatalf("expected trial subscription, got %s", sub.Status)
	}

	// Nothing to do while the trial is still running.
	f.sched.SweepTrials(f.ctx)
	mid, err := f.subSvc.GetByID(f.ctx, testOrgID, sub.ID)
	if err != nil {
		t.Fatalf("reload subscription: %v", err)
	}
	if mid.Status != subscriptiondomain.StatusTrial {
		t.Fatalf("expected trial to survive early sweep, got %s", mid.Status)
	}

	f.clk.now = sub.TrialEndsAt.Add(time.Minute)
	f.sched.SweepTrials(f.ctx)

	ended, err := f.subSvc.GetByID(f.ctx, testOrgID, sub.ID)
	if err != nil {
		t.Fatalf("reload subscription: %v", err)
	}
	if ended.Status != subscriptiondomain.StatusActive {
		t.Fatalf("expected active after trial sweep, got %s", ended.Status)
	}
}

func TestSweepOverdueFlagsInvoiceAndSubscription(t *testing.T) {
	f := setupSchedulerTest(t)
	plan := f.createPlan(t, 0)
	sub := f.createSubscription(t, plan.ID)

	inv, err := f.invoiceSvc.Generate(f.ctx, testOrgID, invoicedomain.GenerateRequest{
		SubscriptionID: sub.ID,
		PeriodStart:    sub.CurrentPeriodStart,
		PeriodEnd:      sub.CurrentPeriodEnd,
	})
	if err != nil {
		t.Fatalf("generate invoice: %v", err)
	}
	final, err := f.invoiceSvc.Finalize(f.ctx, testOrgID, inv.ID)
	if err != nil {
		t.Fatalf("finalize invoice: %v", err)
	}

	// Still within terms, sweep leaves it alone.
	f.sched.SweepOverdue(f.ctx)
	same, err := f.invoiceSvc.GetByID(f.ctx, testOrgID, inv.ID)
	if err != nil {
		t.Fatalf("reload invoice: %v", err)
	}
	if same.Status != invoicedomain.StatusFinal {
		t.Fatalf("expected final before due date, got %s", same.Status)
	}

	f.clk.now = final.DueAt.Add(time.Hour)
	f.sched.SweepOverdue(f.ctx)

	flagged, err := f.invoiceSvc.GetByID(f.ctx, testOrgID, inv.ID)
	if err != nil {
		t.Fatalf("reload invoice: %v", err)
	}
	if flagged.Status != invoicedomain.StatusOverdue {
		t.Fatalf("expected overdue invoice, got %s", flagged.Status)
	}

	behind, err := f.subSvc.GetByID(f.ctx, testOrgID, sub.ID)
	if err != nil {
		t.Fatalf("reload subscription: %v", err)
	}
	if behind.Status != subscriptiondomain.StatusPastDue {
		t.Fatalf("expected past_due subscription, got %s", behind.Status)
	}
}
