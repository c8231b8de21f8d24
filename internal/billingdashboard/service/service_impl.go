package service

import (
	"context"

	dashboarddomain "github.com/smallbiznis/deskflow/internal/billingdashboard/domain"
	"github.com/smallbiznis/deskflow/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(p ServiceParam) dashboarddomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("billingdashboard.service"),
	}
}

func (s *Service) Overview(ctx context.Context, recentLimit int) (dashboarddomain.OverviewResponse, error) {
	orgID, err := orgcontext.OrgID(ctx)
	if err != nil {
		return dashboarddomain.OverviewResponse{}, err
	}
	if recentLimit <= 0 || recentLimit > 50 {
		recentLimit = 10
	}

	var resp dashboarddomain.OverviewResponse

	var subRows []struct {
		Status string
		Count  int64
		MRR    int64
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT status, COUNT(1) AS count, COALESCE(SUM(mrr_cents), 0) AS mrr
		 FROM subscriptions
		 WHERE org_id = ?
		 GROUP BY status`,
		orgID,
	).Scan(&subRows).Error; err != nil {
		return resp, err
	}
	for _, row := range subRows {
		switch row.Status {
		case "draft":
			resp.Overview.Subscriptions.Draft = row.Count
		case "trial":
			resp.Overview.Subscriptions.Trial = row.Count
			resp.Overview.MRRCents += row.MRR
		case "active":
			resp.Overview.Subscriptions.Active = row.Count
			resp.Overview.MRRCents += row.MRR
		case "past_due":
			resp.Overview.Subscriptions.PastDue = row.Count
			resp.Overview.MRRCents += row.MRR
		case "paused":
			resp.Overview.Subscriptions.Paused = row.Count
		case "canceled":
			resp.Overview.Subscriptions.Canceled = row.Count
		}
	}

	var invRows []struct {
		Status string
		Count  int64
		Total  int64
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT status, COUNT(1) AS count, COALESCE(SUM(total_cents), 0) AS total
		 FROM invoices
		 WHERE org_id = ?
		 GROUP BY status`,
		orgID,
	).Scan(&invRows).Error; err != nil {
		return resp, err
	}
	for _, row := range invRows {
		switch row.Status {
		case "draft":
			resp.Overview.Invoices.Draft = row.Count
		case "final":
			resp.Overview.Invoices.Final = row.Count
			resp.Overview.OutstandingCents += row.Total
		case "paid":
			resp.Overview.Invoices.Paid = row.Count
		case "overdue":
			resp.Overview.Invoices.Overdue = row.Count
			resp.Overview.OutstandingCents += row.Total
			resp.Overview.OverdueCents += row.Total
		case "canceled":
			resp.Overview.Invoices.Canceled = row.Count
		}
	}

	var activity []dashboarddomain.RecentActivity
	if err := s.db.WithContext(ctx).Raw(
		`SELECT subject_type, subject_id, action, new_status, created_at AS occurred_at
		 FROM activity_records
		 WHERE org_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		orgID,
		recentLimit,
	).Scan(&activity).Error; err != nil {
		return resp, err
	}
	resp.Activity = activity

	return resp, nil
}
