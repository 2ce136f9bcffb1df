// Package conditions resolves the per-brand overrides of a financing plan,
// caching platform answers (including "no overrides") for a short TTL.
package conditions

import (
	"context"
	"fmt"
	"log"
	"time"

	"saledesk/backend/internal/cache"
	"saledesk/backend/internal/domain"
)

type Fetcher interface {
	GetPlanConditions(ctx context.Context, planID, brandID int64) (*domain.PlanConditions, error)
}

type Resolver struct {
	fetcher  Fetcher
	cache    cache.ConditionsCache
	cacheTTL time.Duration
	now      func() time.Time
}

func NewResolver(fetcher Fetcher, cacheStore cache.ConditionsCache, cacheTTL time.Duration) *Resolver {
	if cacheStore == nil {
		cacheStore = cache.NoopConditionsCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}

	return &Resolver{
		fetcher:  fetcher,
		cache:    cacheStore,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// Resolve returns the overrides for planID and brandID, or nil when there
// are none. Cache failures degrade to a direct platform call.
func (r *Resolver) Resolve(ctx context.Context, planID, brandID int64) (*domain.PlanConditions, error) {
	key := Key(planID, brandID)

	cached, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		log.Printf("[conditions] WARN: cache read %s failed: %v", key, err)
	}
	if err == nil && ok && cached != nil {
		return copyConditions(cached.Conditions), nil
	}

	found, err := r.fetcher.GetPlanConditions(ctx, planID, brandID)
	if err != nil {
		return nil, err
	}

	entry := &cache.ConditionsEntry{Conditions: copyConditions(found), FetchedAt: r.now().UTC()}
	if err := r.cache.Set(ctx, key, entry, r.cacheTTL); err != nil {
		log.Printf("[conditions] WARN: cache write %s failed: %v", key, err)
	}
	return found, nil
}

func Key(planID, brandID int64) string {
	return fmt.Sprintf("plan:%d:brand:%d", planID, brandID)
}

func copyConditions(c *domain.PlanConditions) *domain.PlanConditions {
	if c == nil {
		return nil
	}
	copied := *c
	return &copied
}
