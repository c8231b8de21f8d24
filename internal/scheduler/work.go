package scheduler

import (
	"context"
	"time"

	invoicedomain "github.com/smallbiznis/deskflow/internal/invoice/domain"
	subscriptiondomain "github.com/smallbiznis/deskflow/internal/subscription/domain"
)

func (s *Scheduler) fetchDueSubscriptions(ctx context.Context, now time.Time, limit int) ([]workItem, error) {
	if limit <= 0 {
		limit = 100
	}
	var items []workItem
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, org_id
		 FROM subscriptions
		 WHERE status IN (?, ?, ?) AND current_period_end <= ?
		 ORDER BY current_period_end ASC, id ASC
		 LIMIT ?`,
		subscriptiondomain.StatusActive,
		subscriptiondomain.StatusTrial,
		subscriptiondomain.StatusPastDue,
		now,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Scheduler) fetchEndedTrials(ctx context.Context, now time.Time, limit int) ([]workItem, error) {
	if limit <= 0 {
		limit = 100
	}
	var items []workItem
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, org_id
		 FROM subscriptions
		 WHERE status = ? AND trial_ends_at IS NOT NULL AND trial_ends_at <= ?
		 ORDER BY trial_ends_at ASC, id ASC
		 LIMIT ?`,
		subscriptiondomain.StatusTrial,
		now,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// fetchUninvoicedPeriods finds subscriptions whose last closed period has no
// invoice covering it.
func (s *Scheduler) fetchUninvoicedPeriods(ctx context.Context, limit int) ([]periodItem, error) {
	if limit <= 0 {
		limit = 100
	}
	var items []periodItem
	err := s.db.WithContext(ctx).Raw(
		`SELECT s.id, s.org_id,
		        s.last_closed_period_start AS period_start,
		        s.last_closed_period_end AS period_end,
		        s.last_closed_free_cycle AS free_cycle
		 FROM subscriptions s
		 WHERE s.last_closed_period_end IS NOT NULL
		 AND s.status != ?
		 AND NOT EXISTS (
		     SELECT 1 FROM invoices i
		     WHERE i.subscription_id = s.id AND i.period_end = s.last_closed_period_end
		 )
		 ORDER BY s.last_closed_period_end ASC, s.id ASC
		 LIMIT ?`,
		subscriptiondomain.StatusCanceled,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Scheduler) fetchOverdueInvoices(ctx context.Context, now time.Time, limit int) ([]workItem, error) {
	if limit <= 0 {
		limit = 100
	}
	var items []workItem
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, org_id
		 FROM invoices
		 WHERE status = ? AND due_at <= ?
		 ORDER BY due_at ASC, id ASC
		 LIMIT ?`,
		invoicedomain.StatusFinal,
		now,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
