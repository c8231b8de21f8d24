package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/deskflow/internal/catalog/domain"
	"github.com/smallbiznis/deskflow/internal/clock"
	coupondomain "github.com/smallbiznis/deskflow/internal/coupon/domain"
	"github.com/smallbiznis/deskflow/internal/money"
	"github.com/smallbiznis/deskflow/internal/orgcontext"
	pricingdomain "github.com/smallbiznis/deskflow/internal/pricing/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	CatalogSvc catalogdomain.Service
	CouponSvc  coupondomain.Service
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	clock      clock.Clock
	catalogSvc catalogdomain.Service
	couponSvc  coupondomain.Service
}

func NewService(p ServiceParam) pricingdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("pricing.service"),

		clock:      p.Clock,
		catalogSvc: p.CatalogSvc,
		couponSvc:  p.CouponSvc,
	}
}

// Resolve computes the recurring charge and MRR for one plan instance. The
// computation is pure given the catalog rows it loads: identical inputs
// always produce identical amounts.
func (s *Service) Resolve(ctx context.Context, req pricingdomain.ResolveRequest) (*pricingdomain.ResolveResult, error) {
	orgID, err := orgcontext.OrgID(ctx)
	if err != nil {
		return nil, err
	}

	planID, err := snowflake.ParseString(strings.TrimSpace(req.PlanID))
	if err != nil {
		return nil, catalogdomain.ErrPlanNotFound
	}
	if req.Cycle != catalogdomain.IntervalMonthly && req.Cycle != catalogdomain.IntervalYearly {
		return nil, pricingdomain.ErrInvalidCycle
	}
	if req.Seats < 0 {
		return nil, pricingdomain.ErrInvalidSeats
	}

	plan, err := s.catalogSvc.GetPlan(ctx, orgID, planID)
	if err != nil {
		return nil, err
	}
	pricings, err := s.catalogSvc.ListPricings(ctx, orgID, planID)
	if err != nil {
		return nil, err
	}

	chargeRow, err := selectChargeRow(plan.PricingModel, pricings, req.Cycle, req.Region)
	if err != nil {
		return nil, err
	}

	result := &pricingdomain.ResolveResult{
		PlanID:   plan.ID,
		PlanName: plan.Name,
	}
	if chargeRow != nil {
		result.Currency = chargeRow.Currency
	}

	var recurring int64
	switch plan.PricingModel {
	case catalogdomain.PricingModelFlat:
		recurring = chargeRow.AmountCents
	case catalogdomain.PricingModelSeat, catalogdomain.PricingModelHybrid:
		recurring = chargeRow.AmountCents
		perSeat := perSeatAmount(chargeRow, pricings, req.Cycle)
		// All seats are billed; seat one is not free.
		recurring += perSeat * req.Seats
		result.PerSeatCents = perSeat
	case catalogdomain.PricingModelUsage:
		recurring = 0
	default:
		return nil, catalogdomain.ErrInvalidPricingModel
	}

	// Usage components are priced at invoice time from the period's
	// aggregated usage, never from the subscription record.
	if plan.PricingModel == catalogdomain.PricingModelUsage || plan.PricingModel == catalogdomain.PricingModelHybrid {
		for _, row := range pricings {
			if row.PricingType != catalogdomain.PricingTypeUsage || row.UsageMeterID == nil {
				continue
			}
			tiers := row.UsageTiers.Data()
			if err := catalogdomain.ValidateTierTable(tiers); err != nil {
				return nil, err
			}
			if result.Currency == "" {
				result.Currency = row.Currency
			}
			result.UsageComponents = append(result.UsageComponents, pricingdomain.UsageComponent{
				PricingID:    row.ID,
				UsageMeterID: *row.UsageMeterID,
				Tiers:        tiers,
			})
		}
	}

	addOnCharges, consumables, err := s.resolveAddOns(ctx, orgID, planID, req.AddOnIDs, req.Seats)
	if err != nil {
		return nil, err
	}
	for _, charge := range addOnCharges {
		recurring += charge.AmountCents
	}
	result.AddOnCharges = addOnCharges
	result.ConsumableAddOns = consumables

	if req.CouponCode != nil && strings.TrimSpace(*req.CouponCode) != "" {
		coupon, err := s.couponSvc.GetByCode(ctx, orgID, *req.CouponCode)
		if err != nil {
			return nil, err
		}
		if err := coupondomain.Validate(coupon, planID, s.clock.Now()); err != nil {
			return nil, err
		}
		recurring = coupondomain.ApplyDiscount(coupon.DiscountType, coupon.DiscountValue, recurring)
	}

	if req.FreeCycle {
		recurring = 0
	}

	result.RecurringChargeCents = recurring
	if req.Cycle == catalogdomain.IntervalYearly {
		result.MRRCents = money.MonthlyEquivalent(recurring)
	} else {
		result.MRRCents = recurring
	}

	result.LineItemPreview = buildPreview(plan.Name, req.Cycle, recurring)
	return result, nil
}

// selectChargeRow picks the pricing row backing the recurring charge: a
// regional row matching the requested region wins over the base row, and the
// row's interval must match the requested cycle. Usage-model plans have no
// charge row requirement.
func selectChargeRow(model catalogdomain.PricingModel, pricings []catalogdomain.ProductPricing, cycle catalogdomain.BillingInterval, region *string) (*catalogdomain.ProductPricing, error) {
	var base *catalogdomain.ProductPricing
	var regional *catalogdomain.ProductPricing
	for i := range pricings {
		row := &pricings[i]
		if row.Interval == nil || *row.Interval != cycle {
			continue
		}
		switch row.PricingType {
		case catalogdomain.PricingTypeBase:
			if base == nil {
				base = row
			}
		case catalogdomain.PricingTypeRegional:
			if region != nil && row.Region != nil && strings.EqualFold(*row.Region, *region) && regional == nil {
				regional = row
			}
		}
	}
	if regional != nil {
		return regional, nil
	}
	if base != nil {
		return base, nil
	}
	if model == catalogdomain.PricingModelUsage {
		return nil, nil
	}
	return nil, pricingdomain.ErrPricingNotFoundForCycle
}

func perSeatAmount(chargeRow *catalogdomain.ProductPricing, pricings []catalogdomain.ProductPricing, cycle catalogdomain.BillingInterval) int64 {
	if chargeRow.PerSeatAmount != nil {
		return *chargeRow.PerSeatAmount
	}
	for i := range pricings {
		row := &pricings[i]
		if row.PricingType != catalogdomain.PricingTypeSeat {
			continue
		}
		if row.Interval == nil || *row.Interval != cycle {
			continue
		}
		if row.PerSeatAmount != nil {
			return *row.PerSeatAmount
		}
		return row.AmountCents
	}
	return 0
}

// resolveAddOns classifies the selected plan attachments. billed_with_main
// amounts join the recurring charge; consumables are carried forward for
// invoice-time usage billing only.
func (s *Service) resolveAddOns(ctx context.Context, orgID, planID snowflake.ID, addOnIDs []string, seats int64) ([]pricingdomain.AddOnCharge, []pricingdomain.ConsumableAddOn, error) {
	if len(addOnIDs) == 0 {
		return nil, nil, nil
	}

	views, err := s.catalogSvc.ListPlanAddOns(ctx, orgID, planID)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[snowflake.ID]catalogdomain.PlanAddOnView, len(views))
	for _, view := range views {
		byID[view.Attachment.AddOnID] = view
	}

	var charges []pricingdomain.AddOnCharge
	var consumables []pricingdomain.ConsumableAddOn
	for _, raw := range addOnIDs {
		id, err := snowflake.ParseString(strings.TrimSpace(raw))
		if err != nil {
			return nil, nil, catalogdomain.ErrInvalidAddOnID
		}
		view, ok := byID[id]
		if !ok {
			return nil, nil, catalogdomain.ErrAddOnNotFound
		}
		switch view.Attachment.BillingType {
		case catalogdomain.BillingTypeBilledWithMain:
			amount := view.AddOn.AmountCents
			if view.AddOn.PerSeatAmount != nil {
				amount += *view.AddOn.PerSeatAmount * seats
			}
			charges = append(charges, pricingdomain.AddOnCharge{
				AddOnID:     id,
				Name:        view.AddOn.Name,
				AmountCents: amount,
			})
		case catalogdomain.BillingTypeConsumable:
			consumables = append(consumables, pricingdomain.ConsumableAddOn{
				AddOnID:        id,
				Name:           view.AddOn.Name,
				UnitPriceCents: view.AddOn.AmountCents,
				UsageMeterID:   view.AddOn.UsageMeterID,
			})
		default:
			return nil, nil, catalogdomain.ErrInvalidBillingType
		}
	}
	return charges, consumables, nil
}

// buildPreview mirrors the recurring line the invoice generator will emit.
// billed_with_main add-ons are already folded into the recurring charge.
func buildPreview(planName string, cycle catalogdomain.BillingInterval, recurring int64) []pricingdomain.LineItemPreview {
	return []pricingdomain.LineItemPreview{
		{
			Description:    pricingdomain.RecurringDescription(planName, cycle),
			Quantity:       1,
			UnitPriceCents: recurring,
			TotalCents:     recurring,
		},
	}
}
