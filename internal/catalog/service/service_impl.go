package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/deskflow/internal/catalog/domain"
	"github.com/smallbiznis/deskflow/internal/cache"
	"github.com/smallbiznis/deskflow/internal/clock"
	"github.com/smallbiznis/deskflow/internal/config"
	"github.com/smallbiznis/deskflow/internal/orgcontext"
	"github.com/smallbiznis/deskflow/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Cfg   config.Config
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID       *snowflake.Node
	clock       clock.Clock
	planrepo    repository.Repository[catalogdomain.ProductPlan]
	pricingrepo repository.Repository[catalogdomain.ProductPricing]
	addonrepo   repository.Repository[catalogdomain.ProductAddOn]
	planCache   cache.Cache[snowflake.ID, catalogdomain.ProductPlan]
	cacheTTL    time.Duration
}

func NewService(p ServiceParam) catalogdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("catalog.service"),

		genID:       p.GenID,
		clock:       p.Clock,
		planrepo:    repository.ProvideStore[catalogdomain.ProductPlan](p.DB),
		pricingrepo: repository.ProvideStore[catalogdomain.ProductPricing](p.DB),
		addonrepo:   repository.ProvideStore[catalogdomain.ProductAddOn](p.DB),
		planCache:   cache.NewTTLCache[snowflake.ID, catalogdomain.ProductPlan](),
		cacheTTL:    p.Cfg.Billing.PlanCacheTTL,
	}
}

func (s *Service) CreatePlan(ctx context.Context, req catalogdomain.CreatePlanRequest) (*catalogdomain.ProductPlan, error) {
	orgID, err := orgcontext.OrgID(ctx)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, catalogdomain.ErrInvalidName
	}
	switch req.PricingModel {
	case catalogdomain.PricingModelFlat,
		catalogdomain.PricingModelSeat,
		catalogdomain.PricingModelUsage,
		catalogdomain.PricingModelHybrid:
	default:
		return nil, catalogdomain.ErrInvalidPricingModel
	}

	now := s.clock.Now()
	plan := &catalogdomain.ProductPlan{
		ID:           s.genID.Generate(),
		OrgID:        orgID,
		Name:         name,
		Status:       catalogdomain.PlanStatusDraft,
		PricingModel: req.PricingModel,
		TrialDays:    req.TrialDays,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.planrepo.Create(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *Service) ActivatePlan(ctx context.Context, planID string) (*catalogdomain.ProductPlan, error) {
	return s.setPlanStatus(ctx, planID, catalogdomain.PlanStatusActive)
}

func (s *Service) ArchivePlan(ctx context.Context, planID string) (*catalogdomain.ProductPlan, error) {
	return s.setPlanStatus(ctx, planID, catalogdomain.PlanStatusArchived)
}

func (s *Service) setPlanStatus(ctx context.Context, planID string, status catalogdomain.PlanStatus) (*catalogdomain.ProductPlan, error) {
	orgID, err := orgcontext.OrgID(ctx)
	if err != nil {
		return nil, err
	}
	id, err := parseID(planID, catalogdomain.ErrInvalidPlanID)
	if err != nil {
		return nil, err
	}

	plan, err := s.GetPlan(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	plan.Status = status
	plan.UpdatedAt = s.clock.Now()
	if err := s.planrepo.Save(ctx, plan); err != nil {
		return nil, err
	}
	s.planCache.Delete(plan.ID)
	return plan, nil
}

func (s *Service) ListPlans(ctx context.Context) ([]catalogdomain.ProductPlan, error) {
	orgID, err := orgcontext.OrgID(ctx)
	if err != nil {
		return nil, err
	}
	return s.planrepo.Find(ctx, map[string]any{"org_id": orgID})
}

func (s *Service) GetPlan(ctx context.Context, orgID, planID snowflake.ID) (*catalogdomain.ProductPlan, error) {
	if cached, ok := s.planCache.Get(planID); ok && cached.OrgID == orgID {
		plan := cached
		return &plan, nil
	}

	plan, err := s.planrepo.FindByID(ctx, planID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalogdomain.ErrPlanNotFound
		}
		return nil, err
	}
	if plan.OrgID != orgID {
		return nil, catalogdomain.ErrPlanNotFound
	}

	s.planCache.Set(plan.ID, *plan, s.cacheTTL)
	return plan, nil
}

func (s *Service) CreatePricing(ctx context.Context, req catalogdomain.CreatePricingRequest) (*catalogdomain.ProductPricing, error) {
	orgID, err := orgcontext.OrgID(ctx)
	if err != nil {
		return nil, err
	}
	planID, err := parseID(req.PlanID, catalogdomain.ErrInvalidPlanID)
	if err != nil {
		return nil, err
	}

	plan, err := s.GetPlan(ctx, orgID, planID)
	if err != nil {
		return nil, err
	}
	if plan.Status == catalogdomain.PlanStatusArchived {
		return nil, catalogdomain.ErrPlanArchived
	}

	switch req.PricingType {
	case catalogdomain.PricingTypeBase, catalogdomain.PricingTypeSeat:
		if req.Interval == nil {
			return nil, catalogdomain.ErrInvalidInterval
		}
	case catalogdomain.PricingTypeRegional:
		if req.Interval == nil {
			return nil, catalogdomain.ErrInvalidInterval
		}
		if req.Region == nil || strings.TrimSpace(*req.Region) == "" {
			return nil, catalogdomain.ErrInvalidPricingType
		}
	case catalogdomain.PricingTypeUsage:
		if err := catalogdomain.ValidateTierTable(req.UsageTiers); err != nil {
			return nil, err
		}
	default:
		return nil, catalogdomain.ErrInvalidPricingType
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if len(currency) != 3 {
		return nil, catalogdomain.ErrInvalidCurrency
	}
	if req.AmountCents < 0 {
		return nil, catalogdomain.ErrInvalidAmount
	}

	var meterID *snowflake.ID
	if req.UsageMeterID != nil {
		parsed, err := parseID(*req.UsageMeterID, catalogdomain.ErrInvalidPricingType)
		if err != nil {
			return nil, err
		}
		meterID = &parsed
	}

	now := s.clock.Now()
	pricing := &catalogdomain.ProductPricing{
		ID:            s.genID.Generate(),
		OrgID:         orgID,
		PlanID:        planID,
		PricingType:   req.PricingType,
		Region:        req.Region,
		Currency:      currency,
		AmountCents:   req.AmountCents,
		Interval:      req.Interval,
		PerSeatAmount: req.PerSeatAmount,
		UsageMeterID:  meterID,
		UsageTiers:    datatypes.NewJSONType(req.UsageTiers),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.pricingrepo.Create(ctx, pricing); err != nil {
		return nil, err
	}
	return pricing, nil
}

func (s *Service) ListPricings(ctx context.Context, orgID, planID snowflake.ID) ([]catalogdomain.ProductPricing, error) {
	return s.pricingrepo.Find(ctx, map[string]any{
		"org_id":  orgID,
		"plan_id": planID,
	})
}

func (s *Service) CreateAddOn(ctx context.Context, name string, amountCents int64, perSeatAmount *int64, usageMeterID *string) (*catalogdomain.ProductAddOn, error) {
	orgID, err := orgcontext.OrgID(ctx)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, catalogdomain.ErrInvalidName
	}
	if amountCents < 0 {
		return nil, catalogdomain.ErrInvalidAmount
	}

	var meterID *snowflake.ID
	if usageMeterID != nil {
		parsed, err := parseID(*usageMeterID, catalogdomain.ErrInvalidAddOnID)
		if err != nil {
			return nil, err
		}
		meterID = &parsed
	}

	now := s.clock.Now()
	addOn := &catalogdomain.ProductAddOn{
		ID:            s.genID.Generate(),
		OrgID:         orgID,
		Name:          name,
		AmountCents:   amountCents,
		PerSeatAmount: perSeatAmount,
		UsageMeterID:  meterID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.addonrepo.Create(ctx, addOn); err != nil {
		return nil, err
	}
	return addOn, nil
}

// AttachAddOn relies on the (plan_id, add_on_id) unique index so two
// concurrent attach calls cannot both land.
func (s *Service) AttachAddOn(ctx context.Context, req catalogdomain.AttachAddOnRequest) (*catalogdomain.ProductPlanAddOn, error) {
	orgID, err := orgcontext.OrgID(ctx)
	if err != nil {
		return nil, err
	}
	planID, err := parseID(req.PlanID, catalogdomain.ErrInvalidPlanID)
	if err != nil {
		return nil, err
	}
	addOnID, err := parseID(req.AddOnID, catalogdomain.ErrInvalidAddOnID)
	if err != nil {
		return nil, err
	}
	switch req.BillingType {
	case catalogdomain.BillingTypeBilledWithMain, catalogdomain.BillingTypeConsumable:
	default:
		return nil, catalogdomain.ErrInvalidBillingType
	}

	if _, err := s.GetPlan(ctx, orgID, planID); err != nil {
		return nil, err
	}
	addOn, err := s.addonrepo.FindByID(ctx, addOnID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalogdomain.ErrAddOnNotFound
		}
		return nil, err
	}
	if addOn.OrgID != orgID {
		return nil, catalogdomain.ErrAddOnNotFound
	}

	attachment := &catalogdomain.ProductPlanAddOn{
		ID:           s.genID.Generate(),
		OrgID:        orgID,
		PlanID:       planID,
		AddOnID:      addOnID,
		BillingType:  req.BillingType,
		DisplayOrder: req.DisplayOrder,
		CreatedAt:    s.clock.Now(),
	}

	result := s.db.WithContext(ctx).Exec(
		`INSERT INTO product_plan_add_ons (id, org_id, plan_id, add_on_id, billing_type, display_order, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (plan_id, add_on_id) DO NOTHING`,
		attachment.ID,
		attachment.OrgID,
		attachment.PlanID,
		attachment.AddOnID,
		attachment.BillingType,
		attachment.DisplayOrder,
		attachment.CreatedAt,
	)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, catalogdomain.ErrAddOnAlreadyAttached
	}
	return attachment, nil
}

func (s *Service) ListPlanAddOns(ctx context.Context, orgID, planID snowflake.ID) ([]catalogdomain.PlanAddOnView, error) {
	type row struct {
		catalogdomain.ProductPlanAddOn
		AddOnName     string        `gorm:"column:add_on_name"`
		AmountCents   int64         `gorm:"column:amount_cents"`
		PerSeatAmount *int64        `gorm:"column:per_seat_amount_cents"`
		UsageMeterID  *snowflake.ID `gorm:"column:usage_meter_id"`
	}
	var rows []row
	err := s.db.WithContext(ctx).Raw(
		`SELECT pa.id, pa.org_id, pa.plan_id, pa.add_on_id, pa.billing_type, pa.display_order, pa.created_at,
		        a.name AS add_on_name, a.amount_cents, a.per_seat_amount_cents, a.usage_meter_id
		 FROM product_plan_add_ons pa
		 JOIN product_add_ons a ON a.id = pa.add_on_id
		 WHERE pa.org_id = ? AND pa.plan_id = ?
		 ORDER BY pa.display_order ASC, pa.id ASC`,
		orgID,
		planID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	views := make([]catalogdomain.PlanAddOnView, 0, len(rows))
	for _, r := range rows {
		views = append(views, catalogdomain.PlanAddOnView{
			Attachment: r.ProductPlanAddOn,
			AddOn: catalogdomain.ProductAddOn{
				ID:            r.AddOnID,
				OrgID:         r.OrgID,
				Name:          r.AddOnName,
				AmountCents:   r.AmountCents,
				PerSeatAmount: r.PerSeatAmount,
				UsageMeterID:  r.UsageMeterID,
			},
		})
	}
	return views, nil
}

func parseID(value string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%w: %s", invalid, value)
	}
	return id, nil
}
