package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/deskflow/internal/catalog/domain"
	catalogservice "github.com/smallbiznis/deskflow/internal/catalog/service"
	"github.com/smallbiznis/deskflow/internal/clock"
	"github.com/smallbiznis/deskflow/internal/config"
	coupondomain "github.com/smallbiznis/deskflow/internal/coupon/domain"
	couponservice "github.com/smallbiznis/deskflow/internal/coupon/service"
	"github.com/smallbiznis/deskflow/internal/migration"
	"github.com/smallbiznis/deskflow/internal/orgcontext"
	pricingdomain "github.com/smallbiznis/deskflow/internal/pricing/domain"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type pricingFixture struct {
	ctx        context.Context
	catalogSvc catalogdomain.Service
	couponSvc  coupondomain.Service
	svc        pricingdomain.Service
}

func setupPricingTest(t *testing.T) *pricingFixture {
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

	clk := clock.Fixed(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	cfg := config.Config{Billing: config.BillingConfig{PlanCacheTTL: time.Minute}}
	catalogSvc := catalogservice.NewService(catalogservice.ServiceParam{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: clk, Cfg: cfg,
	})
	couponSvc := couponservice.NewService(couponservice.ServiceParam{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: clk,
	})
	svc := NewService(ServiceParam{
		DB:         db,
		Log:        zap.NewNop(),
		Clock:      clk,
		CatalogSvc: catalogSvc,
		CouponSvc:  couponSvc,
	})

	return &pricingFixture{
		ctx:        orgcontext.WithOrgID(context.Background(), snowflake.ID(1)),
		catalogSvc: catalogSvc,
		couponSvc:  couponSvc,
		svc:        svc,
	}
}

func int64Ptr(v int64) *int64 { return &v }

func intervalPtr(v catalogdomain.BillingInterval) *catalogdomain.BillingInterval { return &v }

func (f *pricingFixture) createActivePlan(t *testing.T, model catalogdomain.PricingModel) *catalogdomain.ProductPlan {
	t.Helper()
	plan, err := f.catalogSvc.CreatePlan(f.ctx, catalogdomain.CreatePlanRequest{
		Name:         "Pro",
		PricingModel: model,
	})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	if _, err := f.catalogSvc.ActivatePlan(f.ctx, plan.ID.String()); err != nil {
		t.Fatalf("activate plan: %v", err)
	}
	return plan
}

func (f *pricingFixture) addBasePricing(t *testing.T, planID snowflake.ID, interval catalogdomain.BillingInterval, amount int64, perSeat *int64) {
	t.Helper()
	_, err := f.catalogSvc.CreatePricing(f.ctx, catalogdomain.CreatePricingRequest{
		PlanID:        planID.String(),
		PricingType:   catalogdomain.PricingTypeBase,
		Currency:      "USD",
		AmountCents:   amount,
		Interval:      intervalPtr(interval),
		PerSeatAmount: perSeat,
	})
	if err != nil {
		t.Fatalf("create base pricing: %v", err)
	}
}

func TestResolveFlatMonthly(t *testing.T) {
	f := setupPricingTest(t)
	plan := f.createActivePlan(t, catalogdomain.PricingModelFlat)
	f.addBasePricing(t, plan.ID, catalogdomain.IntervalMonthly, 9900, nil)

	result, err := f.svc.Resolve(f.ctx, pricingdomain.ResolveRequest{
		PlanID: plan.ID.String(),
		Cycle:  catalogdomain.IntervalMonthly,
		Seats:  1,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.RecurringChargeCents != 9900 {
		t.Fatalf("expected recurring 9900, got %d", result.RecurringChargeCents)
	}
	if result.MRRCents != 9900 {
		t.Fatalf("expected MRR 9900, got %d", result.MRRCents)
	}
	if result.Currency != "USD" {
		t.Fatalf("expected currency USD, got %q", result.Currency)
	}
	if len(result.LineItemPreview) != 1 || result.LineItemPreview[0].TotalCents != 9900 {
		t.Fatalf("unexpected line item preview: %+v", result.LineItemPreview)
	}
}

func TestResolveYearlyMRRIsMonthlyEquivalent(t *testing.T) {
	f := setupPricingTest(t)
	plan := f.createActivePlan(t, catalogdomain.PricingModelFlat)
	f.addBasePricing(t, plan.ID, catalogdomain.IntervalYearly, 99000, nil)

	result, err := f.svc.Resolve(f.ctx, pricingdomain.ResolveRequest{
		PlanID: plan.ID.String(),
		Cycle:  catalogdomain.IntervalYearly,
		Seats:  1,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.RecurringChargeCents != 99000 {
		t.Fatalf("expected recurring 99000, got %d", result.RecurringChargeCents)
	}
	if result.MRRCents != 8250 {
		t.Fatalf("expected MRR 8250, got %d", result.MRRCents)
	}
}

func TestResolveSeatPricing(t *testing.T) {
	f := setupPricingTest(t)
	plan := f.createActivePlan(t, catalogdomain.PricingModelSeat)
	f.addBasePricing(t, plan.ID, catalogdomain.IntervalMonthly, 9900, int64Ptr(1500))

	result, err := f.svc.Resolve(f.ctx, pricingdomain.ResolveRequest{
		PlanID: plan.ID.String(),
		Cycle:  catalogdomain.IntervalMonthly,
		Seats:  4,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// Base plus all four seats billed.
	if result.RecurringChargeCents != 9900+4*1500 {
		t.Fatalf("expected recurring 15900, got %d", result.RecurringChargeCents)
	}
}

func TestResolveBilledWithMainAddOn(t *testing.T) {
	f := setupPricingTest(t)
	plan := f.createActivePlan(t, catalogdomain.PricingModelFlat)
	f.addBasePricing(t, plan.ID, catalogdomain.IntervalMonthly, 9900, nil)

	addOn, err := f.catalogSvc.CreateAddOn(f.ctx, "Priority Support", 2500, int64Ptr(500), nil)
	if err != nil {
		t.Fatalf("create add-on: %v", err)
	}
	_, err = f.catalogSvc.AttachAddOn(f.ctx, catalogdomain.AttachAddOnRequest{
		PlanID:      plan.ID.String(),
		AddOnID:     addOn.ID.String(),
		BillingType: catalogdomain.BillingTypeBilledWithMain,
	})
	if err != nil {
		t.Fatalf("attach add-on: %v", err)
	}

	result, err := f.svc.Resolve(f.ctx, pricingdomain.ResolveRequest{
		PlanID:   plan.ID.String(),
		Cycle:    catalogdomain.IntervalMonthly,
		Seats:    4,
		AddOnIDs: []string{addOn.ID.String()},
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// 9900 base plus add-on 2500 + 4*500.
	if result.RecurringChargeCents != 9900+2500+4*500 {
		t.Fatalf("expected recurring 14400, got %d", result.RecurringChargeCents)
	}
	if len(result.AddOnCharges) != 1 || result.AddOnCharges[0].AmountCents != 4500 {
		t.Fatalf("unexpected add-on charges: %+v", result.AddOnCharges)
	}
}

func TestResolveConsumableAddOnExcludedFromRecurring(t *testing.T) {
	f := setupPricingTest(t)
	plan := f.createActivePlan(t, catalogdomain.PricingModelFlat)
	f.addBasePricing(t, plan.ID, catalogdomain.IntervalMonthly, 9900, nil)

	meterID := snowflake.ID(777).String()
	addOn, err := f.catalogSvc.CreateAddOn(f.ctx, "SMS Credits", 3, nil, &meterID)
	if err != nil {
		t.Fatalf("create add-on: %v", err)
	}
	_, err = f.catalogSvc.AttachAddOn(f.ctx, catalogdomain.AttachAddOnRequest{
		PlanID:      plan.ID.String(),
		AddOnID:     addOn.ID.String(),
		BillingType: catalogdomain.BillingTypeConsumable,
	})
	if err != nil {
		t.Fatalf("attach add-on: %v", err)
	}

	result, err := f.svc.Resolve(f.ctx, pricingdomain.ResolveRequest{
		PlanID:   plan.ID.String(),
		Cycle:    catalogdomain.IntervalMonthly,
		Seats:    1,
		AddOnIDs: []string{addOn.ID.String()},
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.RecurringChargeCents != 9900 {
		t.Fatalf("expected consumable excluded from recurring, got %d", result.RecurringChargeCents)
	}
	if len(result.ConsumableAddOns) != 1 || result.ConsumableAddOns[0].UnitPriceCents != 3 {
		t.Fatalf("unexpected consumables: %+v", result.ConsumableAddOns)
	}
}

func TestResolveCouponPercentage(t *testing.T) {
	f := setupPricingTest(t)
	plan := f.createActivePlan(t, catalogdomain.PricingModelFlat)
	f.addBasePricing(t, plan.ID, catalogdomain.IntervalMonthly, 9900, nil)

	_, err := f.couponSvc.Create(f.ctx, coupondomain.CreateCouponRequest{
		Code:          "WELCOME20",
		DiscountType:  coupondomain.DiscountPercentage,
		DiscountValue: 20,
	})
	if err != nil {
		t.Fatalf("create coupon: %v", err)
	}

	code := "WELCOME20"
	result, err := f.svc.Resolve(f.ctx, pricingdomain.ResolveRequest{
		PlanID:     plan.ID.String(),
		Cycle:      catalogdomain.IntervalMonthly,
		Seats:      1,
		CouponCode: &code,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.RecurringChargeCents != 7920 {
		t.Fatalf("expected discounted recurring 7920, got %d", result.RecurringChargeCents)
	}
	if result.MRRCents != 7920 {
		t.Fatalf("expected MRR 7920, got %d", result.MRRCents)
	}
}

func TestResolveFreeCycleZeroesCharge(t *testing.T) {
	f := setupPricingTest(t)
	plan := f.createActivePlan(t, catalogdomain.PricingModelFlat)
	f.addBasePricing(t, plan.ID, catalogdomain.IntervalMonthly, 9900, nil)

	result, err := f.svc.Resolve(f.ctx, pricingdomain.ResolveRequest{
		PlanID:    plan.ID.String(),
		Cycle:     catalogdomain.IntervalMonthly,
		Seats:     1,
		FreeCycle: true,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.RecurringChargeCents != 0 || result.MRRCents != 0 {
		t.Fatalf("expected zero charge for free cycle, got %d / %d", result.RecurringChargeCents, result.MRRCents)
	}
}

func TestResolveUsageComponents(t *testing.T) {
	f := setupPricingTest(t)
	plan := f.createActivePlan(t, catalogdomain.PricingModelHybrid)
	f.addBasePricing(t, plan.ID, catalogdomain.IntervalMonthly, 9900, nil)

	meterID := snowflake.ID(777).String()
	_, err := f.catalogSvc.CreatePricing(f.ctx, catalogdomain.CreatePricingRequest{
		PlanID:       plan.ID.String(),
		PricingType:  catalogdomain.PricingTypeUsage,
		Currency:     "USD",
		UsageMeterID: &meterID,
		UsageTiers: []catalogdomain.PriceTier{
			{UpTo: int64Ptr(1000), UnitPriceCents: 0},
			{UpTo: nil, UnitPriceCents: 5},
		},
	})
	if err != nil {
		t.Fatalf("create usage pricing: %v", err)
	}

	result, err := f.svc.Resolve(f.ctx, pricingdomain.ResolveRequest{
		PlanID: plan.ID.String(),
		Cycle:  catalogdomain.IntervalMonthly,
		Seats:  1,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(result.UsageComponents) != 1 {
		t.Fatalf("expected 1 usage component, got %d", len(result.UsageComponents))
	}
	if result.UsageComponents[0].UsageMeterID != snowflake.ID(777) {
		t.Fatalf("unexpected meter id %s", result.UsageComponents[0].UsageMeterID)
	}
	// The usage component never contributes to the recurring charge.
	if result.RecurringChargeCents != 9900 {
		t.Fatalf("expected recurring 9900, got %d", result.RecurringChargeCents)
	}
}

func TestResolveDeterministic(t *testing.T) {
	f := setupPricingTest(t)
	plan := f.createActivePlan(t, catalogdomain.PricingModelSeat)
	f.addBasePricing(t, plan.ID, catalogdomain.IntervalYearly, 99000, int64Ptr(1500))

	req := pricingdomain.ResolveRequest{
		PlanID: plan.ID.String(),
		Cycle:  catalogdomain.IntervalYearly,
		Seats:  3,
	}
	first, err := f.svc.Resolve(f.ctx, req)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	second, err := f.svc.Resolve(f.ctx, req)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if first.RecurringChargeCents != second.RecurringChargeCents || first.MRRCents != second.MRRCents {
		t.Fatalf("resolve not deterministic: %d/%d vs %d/%d",
			first.RecurringChargeCents, first.MRRCents, second.RecurringChargeCents, second.MRRCents)
	}
}

func TestResolveErrors(t *testing.T) {
	f := setupPricingTest(t)
	plan := f.createActivePlan(t, catalogdomain.PricingModelFlat)
	f.addBasePricing(t, plan.ID, catalogdomain.IntervalMonthly, 9900, nil)

	if _, err := f.svc.Resolve(f.ctx, pricingdomain.ResolveRequest{
		PlanID: plan.ID.String(),
		Cycle:  "weekly",
		Seats:  1,
	}); !errors.Is(err, pricingdomain.ErrInvalidCycle) {
		t.Fatalf("expected ErrInvalidCycle, got %v", err)
	}

	if _, err := f.svc.Resolve(f.ctx, pricingdomain.ResolveRequest{
		PlanID: plan.ID.String(),
		Cycle:  catalogdomain.IntervalMonthly,
		Seats:  -1,
	}); !errors.Is(err, pricingdomain.ErrInvalidSeats) {
		t.Fatalf("expected ErrInvalidSeats, got %v", err)
	}

	if _, err := f.svc.Resolve(f.ctx, pricingdomain.ResolveRequest{
		PlanID: plan.ID.String(),
		Cycle:  catalogdomain.IntervalYearly,
		Seats:  1,
	}); !errors.Is(err, pricingdomain.ErrPricingNotFoundForCycle) {
		t.Fatalf("expected ErrPricingNotFoundForCycle, got %v", err)
	}

	if _, err := f.svc.Resolve(f.ctx, pricingdomain.ResolveRequest{
		PlanID: snowflake.ID(999999).String(),
		Cycle:  catalogdomain.IntervalMonthly,
		Seats:  1,
	}); !errors.Is(err, catalogdomain.ErrPlanNotFound) {
		t.Fatalf("expected ErrPlanNotFound, got %v", err)
	}
}
