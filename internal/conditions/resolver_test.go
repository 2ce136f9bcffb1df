package conditions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saledesk/backend/internal/cache"
	"saledesk/backend/internal/domain"
)

type fakeFetcher struct {
	calls      int
	conditions *domain.PlanConditions
	err        error
}

func (f *fakeFetcher) GetPlanConditions(_ context.Context, planID, brandID int64) (*domain.PlanConditions, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.conditions == nil {
		return nil, nil
	}
	c := *f.conditions
	c.FinancingPlanID = planID
	c.BrandID = brandID
	return &c, nil
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]cache.ConditionsEntry
	ttls    map[string]time.Duration
	failGet bool
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]cache.ConditionsEntry{}, ttls: map[string]time.Duration{}}
}

func (m *memoryCache) Get(_ context.Context, key string) (*cache.ConditionsEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, false, errors.New("redis down")
	}
	entry, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	return &entry, true, nil
}

func (m *memoryCache) Set(_ context.Context, key string, value *cache.ConditionsEntry, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = *value
	m.ttls[key] = ttl
	return nil
}

func TestResolveCachesPlatformAnswer(t *testing.T) {
	fetcher := &fakeFetcher{conditions: &domain.PlanConditions{ID: 3, Installments: domain.Num(6)}}
	store := newMemoryCache()
	resolver := NewResolver(fetcher, store, time.Minute)

	first, err := resolver.Resolve(context.Background(), 7, 4)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, int64(4), first.BrandID)

	second, err := resolver.Resolve(context.Background(), 7, 4)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, time.Minute, store.ttls[Key(7, 4)])
}

func TestResolveCachesAbsentConditions(t *testing.T) {
	fetcher := &fakeFetcher{}
	resolver := NewResolver(fetcher, newMemoryCache(), 0)

	for i := 0; i < 3; i++ {
		found, err := resolver.Resolve(context.Background(), 7, 9)
		require.NoError(t, err)
		assert.Nil(t, found)
	}
	assert.Equal(t, 1, fetcher.calls)
}

func TestResolveDoesNotCacheFailures(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("platform down")}
	store := newMemoryCache()
	resolver := NewResolver(fetcher, store, time.Minute)

	_, err := resolver.Resolve(context.Background(), 7, 4)
	require.Error(t, err)
	assert.Empty(t, store.entries)
}

func TestResolveFallsBackWhenCacheUnavailable(t *testing.T) {
	fetcher := &fakeFetcher{conditions: &domain.PlanConditions{ID: 3}}
	store := newMemoryCache()
	store.failGet = true
	resolver := NewResolver(fetcher, store, time.Minute)

	found, err := resolver.Resolve(context.Background(), 7, 4)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, 1, fetcher.calls)
}

func TestResolveWithoutCacheAlwaysFetches(t *testing.T) {
	fetcher := &fakeFetcher{}
	resolver := NewResolver(fetcher, nil, 0)

	_, _ = resolver.Resolve(context.Background(), 1, 1)
	_, _ = resolver.Resolve(context.Background(), 1, 1)
	assert.Equal(t, 2, fetcher.calls)
}
