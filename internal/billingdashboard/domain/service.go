package domain

import "context"

// Service exposes the admin billing overview.
type Service interface {
	Overview(ctx context.Context, recentLimit int) (OverviewResponse, error)
}
