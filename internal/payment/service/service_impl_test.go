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
	catalogdomain "github.com/smallbiznis/deskflow/internal/catalog/domain"
	catalogservice "github.com/smallbiznis/deskflow/internal/catalog/service"
	"github.com/smallbiznis/deskflow/internal/config"
	couponservice "github.com/smallbiznis/deskflow/internal/coupon/service"
	"github.com/smallbiznis/deskflow/internal/events"
	invoicedomain "github.com/smallbiznis/deskflow/internal/invoice/domain"
	invoiceservice "github.com/smallbiznis/deskflow/internal/invoice/service"
	"github.com/smallbiznis/deskflow/internal/migration"
	"github.com/smallbiznis/deskflow/internal/orgcontext"
	paymentdomain "github.com/smallbiznis/deskflow/internal/payment/domain"
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

type paymentFixture struct {
	ctx        context.Context
	clk        *testClock
	invoiceSvc invoicedomain.Service
	subSvc     subscriptiondomain.Service
	svc        paymentdomain.Service

	catalogSvc catalogdomain.Service
}

func setupPaymentTest(t *testing.T) *paymentFixture {
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

	clk := &testClock{now: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
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
	svc := NewService(ServiceParam{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: clk, InvoiceSvc: invoiceSvc,
	})

	return &paymentFixture{
		ctx:        orgcontext.WithOrgID(context.Background(), testOrgID),
		clk:        clk,
		invoiceSvc: invoiceSvc,
		subSvc:     subSvc,
		svc:        svc,
		catalogSvc: catalogSvc,
	}
}

// finalInvoice seeds a plan, a draft subscription and a finalized invoice
// awaiting payment.
func (f *paymentFixture) finalInvoice(t *testing.T) (*subscriptiondomain.Subscription, *invoicedomain.Invoice) {
	t.Helper()
	plan, err := f.catalogSvc.CreatePlan(f.ctx, catalogdomain.CreatePlanRequest{
		Name:         "Pro",
		PricingModel: catalogdomain.PricingModelFlat,
	})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	interval := catalogdomain.IntervalMonthly
	_, err = f.catalogSvc.CreatePricing(f.ctx, catalogdomain.CreatePricingRequest{
		PlanID:      plan.ID.String(),
		PricingType: catalogdomain.PricingTypeBase,
		Currency:    "USD",
		AmountCents: 9900,
		Interval:    &interval,
	})
	if err != nil {
		t.Fatalf("create pricing: %v", err)
	}
	if _, err := f.catalogSvc.ActivatePlan(f.ctx, plan.ID.String()); err != nil {
		t.Fatalf("activate plan: %v", err)
	}

	sub, err := f.subSvc.Create(f.ctx, subscriptiondomain.CreateSubscriptionRequest{
		CustomerOrgID:    snowflake.ID(2).String(),
		PlanID:           plan.ID.String(),
		BillingCycle:     subscriptiondomain.CycleMonthly,
		Seats:            1,
		CollectionMethod: subscriptiondomain.CollectionSendInvoice,
	})
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}

	inv, err := f.invoiceSvc.Generate(f.ctx, testOrgID, invoicedomain.GenerateRequest{
		SubscriptionID: sub.ID,
		PeriodStart:    sub.CurrentPeriodStart,
		PeriodEnd:      sub.CurrentPeriodEnd,
	})
	if err != nil {
		t.Fatalf("generate invoice: %v", err)
	}
	if _, err := f.invoiceSvc.Finalize(f.ctx, testOrgID, inv.ID); err != nil {
		t.Fatalf("finalize invoice: %v", err)
	}
	return sub, inv
}

func TestRecordPaymentSettlesInvoice(t *testing.T) {
	f := setupPaymentTest(t)
	sub, inv := f.finalInvoice(t)

	payment, err := f.svc.Record(f.ctx, testOrgID, paymentdomain.RecordPaymentRequest{
		InvoiceID:   inv.ID,
		AmountCents: inv.TotalCents,
		Method:      paymentdomain.MethodBankTransfer,
		Reference:   "wire-123",
	})
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if payment.InvoiceID != inv.ID || payment.AmountCents != inv.TotalCents {
		t.Fatalf("unexpected payment: %+v", payment)
	}

	settled, err := f.invoiceSvc.GetByID(f.ctx, testOrgID, inv.ID)
	if err != nil {
		t.Fatalf("reload invoice: %v", err)
	}
	if settled.Status != invoicedomain.StatusPaid {
		t.Fatalf("expected paid invoice, got %s", settled.Status)
	}

	reloaded, err := f.subSvc.GetByID(f.ctx, testOrgID, sub.ID)
	if err != nil {
		t.Fatalf("reload subscription: %v", err)
	}
	if reloaded.Status != subscriptiondomain.StatusActive {
		t.Fatalf("expected active subscription, got %s", reloaded.Status)
	}
}

func TestRecordPaymentDuplicateReference(t *testing.T) {
	f := setupPaymentTest(t)
	_, inv := f.finalInvoice(t)

	req := paymentdomain.RecordPaymentRequest{
		InvoiceID:   inv.ID,
		AmountCents: inv.TotalCents,
		Method:      paymentdomain.MethodManual,
		Reference:   "retry-42",
	}
	first, err := f.svc.Record(f.ctx, testOrgID, req)
	if err != nil {
		t.Fatalf("first record: %v", err)
	}
	second, err := f.svc.Record(f.ctx, testOrgID, req)
	if err != nil {
		t.Fatalf("second record: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected duplicate reference to return payment %s, got %s", first.ID, second.ID)
	}

	payments, err := f.svc.ListForInvoice(f.ctx, testOrgID, inv.ID)
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(payments) != 1 {
		t.Fatalf("expected 1 payment, got %d", len(payments))
	}
}

func TestRecordPaymentAmountMismatch(t *testing.T) {
	f := setupPaymentTest(t)
	_, inv := f.finalInvoice(t)

	_, err := f.svc.Record(f.ctx, testOrgID, paymentdomain.RecordPaymentRequest{
		InvoiceID:   inv.ID,
		AmountCents: inv.TotalCents - 1,
		Method:      paymentdomain.MethodCard,
		Reference:   "short-1",
	})
	if !errors.Is(err, paymentdomain.ErrAmountMismatch) {
		t.Fatalf("expected ErrAmountMismatch, got %v", err)
	}
}

func TestRecordPaymentValidation(t *testing.T) {
	f := setupPaymentTest(t)
	_, inv := f.finalInvoice(t)

	if _, err := f.svc.Record(f.ctx, testOrgID, paymentdomain.RecordPaymentRequest{
		InvoiceID: inv.ID, AmountCents: inv.TotalCents, Method: paymentdomain.MethodCard,
	}); !errors.Is(err, paymentdomain.ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference, got %v", err)
	}

	if _, err := f.svc.Record(f.ctx, testOrgID, paymentdomain.RecordPaymentRequest{
		InvoiceID: inv.ID, AmountCents: 0, Method: paymentdomain.MethodCard, Reference: "x",
	}); !errors.Is(err, paymentdomain.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	if _, err := f.svc.Record(f.ctx, testOrgID, paymentdomain.RecordPaymentRequest{
		InvoiceID: inv.ID, AmountCents: inv.TotalCents, Method: "barter", Reference: "x",
	}); !errors.Is(err, paymentdomain.ErrInvalidMethod) {
		t.Fatalf("expected ErrInvalidMethod, got %v", err)
	}

	if _, err := f.svc.Record(f.ctx, testOrgID, paymentdomain.RecordPaymentRequest{
		InvoiceID: snowflake.ID(999999), AmountCents: 100, Method: paymentdomain.MethodCard, Reference: "x",
	}); !errors.Is(err, invoicedomain.ErrInvoiceNotFound) {
		t.Fatalf("expected ErrInvoiceNotFound, got %v", err)
	}
}
