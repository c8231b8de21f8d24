package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	activityrepository "github.com/smallbiznis/deskflow/internal/activity/repository"
	dashboarddomain "github.com/smallbiznis/deskflow/internal/billingdashboard/domain"
	catalogdomain "github.com/smallbiznis/deskflow/internal/catalog/domain"
	catalogservice "github.com/smallbiznis/deskflow/internal/catalog/service"
	"github.com/smallbiznis/deskflow/internal/config"
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

type dashboardFixture struct {
	ctx        context.Context
	clk        *testClock
	catalogSvc catalogdomain.Service
	subSvc     subscriptiondomain.Service
	invoiceSvc invoicedomain.Service
	svc        dashboarddomain.Service
}

func setupDashboardTest(t *testing.T) *dashboardFixture {
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

	clk := &testClock{now: time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)}
	cfg := config.Config{Billing: config.BillingConfig{
		InvoiceNetTerms: 14 * 24 * time.Hour,
		PlanCacheTTL:    time.Minute,
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
	svc := NewService(ServiceParam{DB: db, Log: zap.NewNop()})

	return &dashboardFixture{
		ctx:        orgcontext.WithOrgID(context.Background(), testOrgID),
		clk:        clk,
		catalogSvc: catalogSvc,
		subSvc:     subSvc,
		invoiceSvc: invoiceSvc,
		svc:        svc,
	}
}

func (f *dashboardFixture) createPlan(t *testing.T) *catalogdomain.ProductPlan {
	t.Helper()
	plan, err := f.catalogSvc.CreatePlan(f.ctx, catalogdomain.CreatePlanRequest{
		Name:         "Pro",
		PricingModel: catalogdomain.PricingModelFlat,
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

func (f *dashboardFixture) createSubscription(t *testing.T, planID snowflake.ID, customer snowflake.ID, method subscriptiondomain.CollectionMethod) *subscriptiondomain.Subscription {
	t.Helper()
	sub, err := f.subSvc.Create(f.ctx, subscriptiondomain.CreateSubscriptionRequest{
		CustomerOrgID:    customer.String(),
		PlanID:           planID.String(),
		BillingCycle:     subscriptiondomain.CycleMonthly,
		Seats:            1,
		CollectionMethod: method,
	})
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	return sub
}

func TestOverviewAggregates(t *testing.T) {
	f := setupDashboardTest(t)
	plan := f.createPlan(t)

	active := f.createSubscription(t, plan.ID, snowflake.ID(2), subscriptiondomain.CollectionAutomatic)
	draft := f.createSubscription(t, plan.ID, snowflake.ID(3), subscriptiondomain.CollectionSendInvoice)

	inv, err := f.invoiceSvc.Generate(f.ctx, testOrgID, invoicedomain.GenerateRequest{
		SubscriptionID: draft.ID,
		PeriodStart:    draft.CurrentPeriodStart,
		PeriodEnd:      draft.CurrentPeriodEnd,
	})
	if err != nil {
		t.Fatalf("generate invoice: %v", err)
	}
	final, err := f.invoiceSvc.Finalize(f.ctx, testOrgID, inv.ID)
	if err != nil {
		t.Fatalf("finalize invoice: %v", err)
	}
	f.clk.now = final.DueAt.Add(time.Hour)
	if _, err := f.invoiceSvc.MarkOverdue(f.ctx, testOrgID, inv.ID); err != nil {
		t.Fatalf("mark overdue: %v", err)
	}

	resp, err := f.svc.Overview(f.ctx, 10)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}

	if resp.Overview.Subscriptions.Active != 1 {
		t.Fatalf("expected 1 active subscription, got %d", resp.Overview.Subscriptions.Active)
	}
	if resp.Overview.Subscriptions.Draft != 1 {
		t.Fatalf("expected 1 draft subscription, got %d", resp.Overview.Subscriptions.Draft)
	}
	// Draft subscriptions carry no committed revenue yet.
	if resp.Overview.MRRCents != active.MRRCents {
		t.Fatalf("expected MRR %d, got %d", active.MRRCents, resp.Overview.MRRCents)
	}
	if resp.Overview.Invoices.Overdue != 1 {
		t.Fatalf("expected 1 overdue invoice, got %d", resp.Overview.Invoices.Overdue)
	}
	if resp.Overview.OutstandingCents != final.TotalCents {
		t.Fatalf("expected outstanding %d, got %d", final.TotalCents, resp.Overview.OutstandingCents)
	}
	if resp.Overview.OverdueCents != final.TotalCents {
		t.Fatalf("expected overdue %d, got %d", final.TotalCents, resp.Overview.OverdueCents)
	}
	if len(resp.Activity) == 0 {
		t.Fatalf("expected recent activity entries")
	}
	if resp.Activity[0].OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at on activity entries")
	}
}

func TestOverviewEmptyOrg(t *testing.T) {
	f := setupDashboardTest(t)

	resp, err := f.svc.Overview(f.ctx, 10)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if resp.Overview.MRRCents != 0 || resp.Overview.Subscriptions.Active != 0 {
		t.Fatalf("expected empty overview, got %+v", resp.Overview)
	}
	if len(resp.Activity) != 0 {
		t.Fatalf("expected no activity, got %d entries", len(resp.Activity))
	}
}

func TestOverviewRequiresOrgContext(t *testing.T) {
	f := setupDashboardTest(t)

	if _, err := f.svc.Overview(context.Background(), 10); !errors.Is(err, orgcontext.ErrMissingOrganization) {
		t.Fatalf("expected ErrMissingOrganization, got %v", err)
	}
}
