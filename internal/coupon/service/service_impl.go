package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/deskflow/internal/clock"
	coupondomain "github.com/smallbiznis/deskflow/internal/coupon/domain"
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
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID      *snowflake.Node
	clock      clock.Clock
	couponrepo repository.Repository[coupondomain.Coupon]
}

func NewService(p ServiceParam) coupondomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("coupon.service"),

		genID:      p.GenID,
		clock:      p.Clock,
		couponrepo: repository.ProvideStore[coupondomain.Coupon](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req coupondomain.CreateCouponRequest) (*coupondomain.Coupon, error) {
	orgID, err := orgcontext.OrgID(ctx)
	if err != nil {
		return nil, err
	}

	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		return nil, coupondomain.ErrInvalidCode
	}

	switch req.DiscountType {
	case coupondomain.DiscountPercentage:
		if req.DiscountValue <= 0 || req.DiscountValue > 100 {
			return nil, coupondomain.ErrInvalidDiscountValue
		}
	case coupondomain.DiscountFixedAmount, coupondomain.DiscountFreeMonths, coupondomain.DiscountTrialExtension:
		if req.DiscountValue <= 0 {
			return nil, coupondomain.ErrInvalidDiscountValue
		}
	default:
		return nil, coupondomain.ErrInvalidDiscountType
	}

	var planIDs *datatypes.JSONType[[]snowflake.ID]
	if req.ApplicablePlanIDs != nil {
		parsed := make([]snowflake.ID, 0, len(req.ApplicablePlanIDs))
		for _, raw := range req.ApplicablePlanIDs {
			id, err := snowflake.ParseString(strings.TrimSpace(raw))
			if err != nil {
				return nil, coupondomain.ErrInvalidCode
			}
			parsed = append(parsed, id)
		}
		wrapped := datatypes.NewJSONType(parsed)
		planIDs = &wrapped
	}

	now := s.clock.Now()
	coupon := &coupondomain.Coupon{
		ID:                s.genID.Generate(),
		OrgID:             orgID,
		Code:              code,
		DiscountType:      req.DiscountType,
		DiscountValue:     req.DiscountValue,
		ApplicablePlanIDs: planIDs,
		MaxRedemptions:    req.MaxRedemptions,
		Status:            coupondomain.CouponStatusActive,
		ExpiresAt:         req.ExpiresAt,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.couponrepo.Create(ctx, coupon); err != nil {
		return nil, err
	}
	return coupon, nil
}

func (s *Service) GetByCode(ctx context.Context, orgID snowflake.ID, code string) (*coupondomain.Coupon, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, coupondomain.ErrInvalidCode
	}

	var coupon coupondomain.Coupon
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND code = ?", orgID, code).
		First(&coupon).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, coupondomain.ErrCouponNotFound
		}
		return nil, err
	}
	return &coupon, nil
}

func (s *Service) Disable(ctx context.Context, couponID string) (*coupondomain.Coupon, error) {
	orgID, err := orgcontext.OrgID(ctx)
	if err != nil {
		return nil, err
	}
	id, err := snowflake.ParseString(strings.TrimSpace(couponID))
	if err != nil {
		return nil, coupondomain.ErrCouponNotFound
	}

	coupon, err := s.couponrepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, coupondomain.ErrCouponNotFound
		}
		return nil, err
	}
	if coupon.OrgID != orgID {
		return nil, coupondomain.ErrCouponNotFound
	}

	coupon.Status = coupondomain.CouponStatusDisabled
	coupon.UpdatedAt = s.clock.Now()
	if err := s.couponrepo.Save(ctx, coupon); err != nil {
		return nil, err
	}
	return coupon, nil
}

// Redeem performs the guarded increment inside the caller's transaction.
// The WHERE clause re-checks the limit so two concurrent subscription
// creations cannot over-redeem.
func (s *Service) Redeem(ctx context.Context, tx *gorm.DB, couponID snowflake.ID) error {
	if tx == nil {
		return errors.New("missing_transaction")
	}
	result := tx.WithContext(ctx).Exec(
		`UPDATE coupons
		 SET redemption_count = redemption_count + 1, updated_at = ?
		 WHERE id = ?
		   AND status = ?
		   AND (max_redemptions IS NULL OR redemption_count < max_redemptions)`,
		s.clock.Now(),
		couponID,
		coupondomain.CouponStatusActive,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return coupondomain.ErrRedemptionsExhausted
	}
	return nil
}
