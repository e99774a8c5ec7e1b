package inventory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeCache is a map-backed AvailabilityCache without TTL handling
type fakeCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*AvailabilityResponse
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[uuid.UUID]*AvailabilityResponse)}
}

func (c *fakeCache) Get(_ context.Context, productID uuid.UUID) (*AvailabilityResponse, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[productID]
	return entry, ok, nil
}

func (c *fakeCache) GetBulk(_ context.Context, productIDs []uuid.UUID) (map[uuid.UUID]*AvailabilityResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	hits := make(map[uuid.UUID]*AvailabilityResponse)
	for _, id := range productIDs {
		if entry, ok := c.entries[id]; ok {
			hits[id] = entry
		}
	}
	return hits, nil
}

func (c *fakeCache) Set(_ context.Context, availability *AvailabilityResponse, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[availability.ProductID] = availability
	c.sets++
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, productIDs ...uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range productIDs {
		delete(c.entries, id)
	}
	return nil
}

var _ AvailabilityCache = (*fakeCache)(nil)

func TestAvailabilityService_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("miss reads authoritative state and fills the cache", func(t *testing.T) {
		f := newServiceFixture(t)
		cache := newFakeCache()
		svc := NewAvailabilityService(f.scope.Records(), cache, time.Minute, zap.NewNop())

		productID := uuid.New()
		_, err := f.service.Restock(ctx, RestockRequest{ProductID: productID, Quantity: 8, UnitCost: decimal.Zero})
		require.NoError(t, err)

		availability, err := svc.Get(ctx, productID)
		require.NoError(t, err)
		assert.Equal(t, 8, availability.Available)
		assert.Equal(t, 1, cache.sets)

		// second read is served from the cache
		_, err = svc.Get(ctx, productID)
		require.NoError(t, err)
		assert.Equal(t, 1, cache.sets)
	})

	t.Run("nil cache is fully authoritative", func(t *testing.T) {
		f := newServiceFixture(t)
		svc := NewAvailabilityService(f.scope.Records(), nil, 0, zap.NewNop())

		availability, err := svc.Get(ctx, uuid.New())
		require.NoError(t, err)
		assert.True(t, availability.IsOutOfStock)
	})
}

func TestAvailabilityService_GetBulk(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	cache := newFakeCache()
	svc := NewAvailabilityService(f.scope.Records(), cache, time.Minute, zap.NewNop())

	stocked := uuid.New()
	cachedOnly := uuid.New()
	unknown := uuid.New()

	_, err := f.service.Restock(ctx, RestockRequest{ProductID: stocked, Quantity: 12, UnitCost: decimal.Zero})
	require.NoError(t, err)
	require.NoError(t, cache.Set(ctx, &AvailabilityResponse{ProductID: cachedOnly, Quantity: 3, Available: 3, Status: "ACTIVE"}, time.Minute))

	results, err := svc.GetBulk(ctx, []uuid.UUID{stocked, cachedOnly, unknown})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, 12, results[stocked].Available)
	assert.Equal(t, 3, results[cachedOnly].Available, "cache hit served as-is")
	assert.True(t, results[unknown].IsOutOfStock, "never-referenced product reads as empty")
}

func TestAvailabilityService_CanFulfill(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	svc := NewAvailabilityService(f.scope.Records(), nil, 0, zap.NewNop())

	productID := uuid.New()
	_, err := f.service.Restock(ctx, RestockRequest{ProductID: productID, Quantity: 5, UnitCost: decimal.Zero})
	require.NoError(t, err)

	ok, available, err := svc.CanFulfill(ctx, productID, 5)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 5, available)

	ok, _, err = svc.CanFulfill(ctx, productID, 6)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMutationsInvalidateCache(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	cache := newFakeCache()
	f.service.SetAvailabilityCache(cache)
	svc := NewAvailabilityService(f.scope.Records(), cache, time.Minute, zap.NewNop())

	productID := uuid.New()
	_, err := f.service.Restock(ctx, RestockRequest{ProductID: productID, Quantity: 10, UnitCost: decimal.Zero})
	require.NoError(t, err)

	stale, err := svc.Get(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, 10, stale.Available)

	_, err = f.service.MarkDamaged(ctx, DamageRequest{ProductID: productID, Quantity: 4})
	require.NoError(t, err)

	fresh, err := svc.Get(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, 6, fresh.Available, "mutation must evict the cached view")
}
