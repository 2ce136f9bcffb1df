package cache

import (
	"context"
	"time"

	"saledesk/backend/internal/domain"
)

// ConditionsEntry is one cached lookup. A nil Conditions records that the
// plan has no overrides for the brand, so misses are cached too.
type ConditionsEntry struct {
	Conditions *domain.PlanConditions `json:"conditions"`
	FetchedAt  time.Time              `json:"fetched_at"`
}

type ConditionsCache interface {
	Get(ctx context.Context, key string) (*ConditionsEntry, bool, error)
	Set(ctx context.Context, key string, value *ConditionsEntry, ttl time.Duration) error
}

type NoopConditionsCache struct{}

func (NoopConditionsCache) Get(_ context.Context, _ string) (*ConditionsEntry, bool, error) {
	return nil, false, nil
}

func (NoopConditionsCache) Set(_ context.Context, _ string, _ *ConditionsEntry, _ time.Duration) error {
	return nil
}
