// Package domain defines the read models behind the billing overview.
package domain

import "time"

// SubscriptionCounts breaks subscriptions down by lifecycle status.
type SubscriptionCounts struct {
	Draft    int64 `json:"draft"`
	Trial    int64 `json:"trial"`
	Active   int64 `json:"active"`
	PastDue  int64 `json:"past_due"`
	Paused   int64 `json:"paused"`
	Canceled int64 `json:"canceled"`
}

// InvoiceCounts breaks invoices down by status.
type InvoiceCounts struct {
	Draft    int64 `json:"draft"`
	Final    int64 `json:"final"`
	Paid     int64 `json:"paid"`
	Overdue  int64 `json:"overdue"`
	Canceled int64 `json:"canceled"`
}

// Overview summarizes an organization's billing position.
type Overview struct {
	MRRCents         int64              `json:"mrr_cents"`
	Subscriptions    SubscriptionCounts `json:"subscriptions"`
	Invoices         InvoiceCounts      `json:"invoices"`
	OutstandingCents int64              `json:"outstanding_cents"`
	OverdueCents     int64              `json:"overdue_cents"`
}

// RecentActivity is one human-readable lifecycle event.
type RecentActivity struct {
	SubjectType string    `json:"subject_type"`
	SubjectID   string    `json:"subject_id"`
	Action      string    `json:"action"`
	NewStatus   string    `json:"new_status,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// OverviewResponse is the API response for the billing overview.
type OverviewResponse struct {
	Overview Overview         `json:"overview"`
	Activity []RecentActivity `json:"activity"`
}
