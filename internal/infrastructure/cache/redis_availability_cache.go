package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	appinv "github.com/storefront/inventory/internal/application/inventory"
)

// RedisAvailabilityCache implements the availability read cache using
// Redis. Entries are JSON payloads under a per-product key with a short
// TTL; mutations evict rather than update.
type RedisAvailabilityCache struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisAvailabilityCache creates a new Redis-backed availability cache
func NewRedisAvailabilityCache(cfg RedisConfig) (*RedisAvailabilityCache, error) {
	client, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}
	return NewRedisAvailabilityCacheWithClient(client, ""), nil
}

// NewRedisAvailabilityCacheWithClient creates a cache with an existing Redis client
func NewRedisAvailabilityCacheWithClient(client *redis.Client, keyPrefix string) *RedisAvailabilityCache {
	if keyPrefix == "" {
		keyPrefix = "availability:"
	}
	return &RedisAvailabilityCache{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (c *RedisAvailabilityCache) key(productID uuid.UUID) string {
	return c.keyPrefix + productID.String()
}

// Get returns the cached availability for one product. The second
// return value reports whether a fresh entry existed.
func (c *RedisAvailabilityCache) Get(ctx context.Context, productID uuid.UUID) (*appinv.AvailabilityResponse, bool, error) {
	payload, err := c.client.Get(ctx, c.key(productID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read availability cache: %w", err)
	}

	var availability appinv.AvailabilityResponse
	if err := json.Unmarshal(payload, &availability); err != nil {
		// A corrupt entry behaves like a miss
		return nil, false, nil
	}
	return &availability, true, nil
}

// GetBulk returns the cached availability for a set of products in one
// MGET round trip. Missing products are absent from the result.
func (c *RedisAvailabilityCache) GetBulk(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]*appinv.AvailabilityResponse, error) {
	if len(productIDs) == 0 {
		return map[uuid.UUID]*appinv.AvailabilityResponse{}, nil
	}

	keys := make([]string, len(productIDs))
	for i, id := range productIDs {
		keys[i] = c.key(id)
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to bulk read availability cache: %w", err)
	}

	result := make(map[uuid.UUID]*appinv.AvailabilityResponse, len(productIDs))
	for i, value := range values {
		payload, ok := value.(string)
		if !ok {
			continue
		}
		var availability appinv.AvailabilityResponse
		if err := json.Unmarshal([]byte(payload), &availability); err != nil {
			continue
		}
		result[productIDs[i]] = &availability
	}
	return result, nil
}

// Set stores one product's availability with the given TTL
func (c *RedisAvailabilityCache) Set(ctx context.Context, availability *appinv.AvailabilityResponse, ttl time.Duration) error {
	payload, err := json.Marshal(availability)
	if err != nil {
		return fmt.Errorf("failed to encode availability: %w", err)
	}
	if err := c.client.Set(ctx, c.key(availability.ProductID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write availability cache: %w", err)
	}
	return nil
}

// Invalidate evicts the entries for the given products
func (c *RedisAvailabilityCache) Invalidate(ctx context.Context, productIDs ...uuid.UUID) error {
	if len(productIDs) == 0 {
		return nil
	}
	keys := make([]string, len(productIDs))
	for i, id := range productIDs {
		keys[i] = c.key(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate availability cache: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (c *RedisAvailabilityCache) Close() error {
	return c.client.Close()
}

// Ensure RedisAvailabilityCache implements AvailabilityCache
var _ appinv.AvailabilityCache = (*RedisAvailabilityCache)(nil)
