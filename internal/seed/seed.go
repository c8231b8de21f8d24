// Package seed bootstraps a default organization and, optionally, a demo
// catalog for local development.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/deskflow/internal/catalog/domain"
	coupondomain "github.com/smallbiznis/deskflow/internal/coupon/domain"
	organizationdomain "github.com/smallbiznis/deskflow/internal/organization/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultOrgName = "Main"
	defaultOrgSlug = "main"
)

// EnsureDefaultOrg seeds the default organization for startup bootstrap.
func EnsureDefaultOrg(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := ensureDefaultOrgTx(ctx, tx, node)
		return err
	})
}

// EnsureDemoCatalog seeds the default organization plus a small demo catalog:
// an active hybrid plan with monthly and yearly pricing, a usage meter with a
// tier table, two add-ons and a percentage coupon. Idempotent on plan name.
func EnsureDemoCatalog(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		org, err := ensureDefaultOrgTx(ctx, tx, node)
		if err != nil {
			return err
		}

		var existing catalogdomain.ProductPlan
		err = tx.WithContext(ctx).
			Where("org_id = ? AND name = ?", org.ID, "Demo Pro").
			First(&existing).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := time.Now().UTC()
		plan := catalogdomain.ProductPlan{
			ID:           node.Generate(),
			OrgID:        org.ID,
			Name:         "Demo Pro",
			Status:       catalogdomain.PlanStatusActive,
			PricingModel: catalogdomain.PricingModelHybrid,
			TrialDays:    14,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.WithContext(ctx).Create(&plan).Error; err != nil {
			return err
		}

		monthly := catalogdomain.IntervalMonthly
		yearly := catalogdomain.IntervalYearly
		perSeat := int64(1500)
		meterID := node.Generate()
		unbounded := []catalogdomain.PriceTier{
			{UpTo: int64Ptr(1000), UnitPriceCents: 0},
			{UpTo: int64Ptr(10000), UnitPriceCents: 5},
			{UpTo: nil, UnitPriceCents: 2},
		}

		pricings := []catalogdomain.ProductPricing{
			{
				ID:            node.Generate(),
				OrgID:         org.ID,
				PlanID:        plan.ID,
				PricingType:   catalogdomain.PricingTypeBase,
				Currency:      "USD",
				AmountCents:   9900,
				Interval:      &monthly,
				PerSeatAmount: &perSeat,
				CreatedAt:     now,
				UpdatedAt:     now,
			},
			{
				ID:            node.Generate(),
				OrgID:         org.ID,
				PlanID:        plan.ID,
				PricingType:   catalogdomain.PricingTypeBase,
				Currency:      "USD",
				AmountCents:   99000,
				Interval:      &yearly,
				PerSeatAmount: &perSeat,
				CreatedAt:     now,
				UpdatedAt:     now,
			},
			{
				ID:           node.Generate(),
				OrgID:        org.ID,
				PlanID:       plan.ID,
				PricingType:  catalogdomain.PricingTypeUsage,
				Currency:     "USD",
				UsageMeterID: &meterID,
				UsageTiers:   datatypes.NewJSONType(unbounded),
				CreatedAt:    now,
				UpdatedAt:    now,
			},
		}
		for i := range pricings {
			if err := tx.WithContext(ctx).Create(&pricings[i]).Error; err != nil {
				return err
			}
		}

		supportSeat := int64(500)
		addOns := []catalogdomain.ProductAddOn{
			{
				ID:            node.Generate(),
				OrgID:         org.ID,
				Name:          "Priority Support",
				AmountCents:   2500,
				PerSeatAmount: &supportSeat,
				CreatedAt:     now,
				UpdatedAt:     now,
			},
			{
				ID:          node.Generate(),
				OrgID:       org.ID,
				Name:        "SMS Credits",
				AmountCents: 3,
				CreatedAt:   now,
				UpdatedAt:   now,
			},
		}
		billingTypes := []catalogdomain.AddOnBillingType{
			catalogdomain.BillingTypeBilledWithMain,
			catalogdomain.BillingTypeConsumable,
		}
		for i := range addOns {
			if err := tx.WithContext(ctx).Create(&addOns[i]).Error; err != nil {
				return err
			}
			attachment := catalogdomain.ProductPlanAddOn{
				ID:           node.Generate(),
				OrgID:        org.ID,
				PlanID:       plan.ID,
				AddOnID:      addOns[i].ID,
				BillingType:  billingTypes[i],
				DisplayOrder: i,
				CreatedAt:    now,
			}
			if err := tx.WithContext(ctx).Create(&attachment).Error; err != nil {
				return err
			}
		}

		coupon := coupondomain.Coupon{
			ID:            node.Generate(),
			OrgID:         org.ID,
			Code:          "WELCOME20",
			DiscountType:  coupondomain.DiscountPercentage,
			DiscountValue: 20,
			Status:        coupondomain.CouponStatusActive,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		return tx.WithContext(ctx).Create(&coupon).Error
	})
}

func ensureDefaultOrgTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) (organizationdomain.Organization, error) {
	var org organizationdomain.Organization
	err := tx.WithContext(ctx).Where("slug = ?", defaultOrgSlug).First(&org).Error
	if err == nil {
		return org, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return org, err
	}
	now := time.Now().UTC()
	org = organizationdomain.Organization{
		ID:        node.Generate(),
		Name:      defaultOrgName,
		Slug:      defaultOrgSlug,
		IsDefault: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(&org).Error; err != nil {
		return org, err
	}
	return org, nil
}

func int64Ptr(v int64) *int64 { return &v }
