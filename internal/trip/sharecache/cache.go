// Package sharecache caches share-token lookups in Redis. Public trip pages
// are read far more often than trips change, so the hot path resolves
// token -> trip id without touching the primary store. The cache is strictly
// an accelerator: a miss falls through to the store, and a Redis outage only
// costs latency.
package sharecache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "tripmate/pkg/domain"
)

const keyPrefix = "share:token:"

// ErrMiss is returned when the token has no cached mapping.
var ErrMiss = errors.New("share cache miss")

// Cache maps share tokens to trip IDs with a TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New constructs a share-token cache. A zero ttl disables expiry, which is
// safe because mutations invalidate explicitly.
func New(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Get resolves a token to a trip id. Returns ErrMiss when not cached.
func (c *Cache) Get(ctx context.Context, token string) (id.TripID, error) {
	val, err := c.client.Get(ctx, keyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return id.TripID{}, ErrMiss
	}
	if err != nil {
		return id.TripID{}, fmt.Errorf("share cache get: %w", err)
	}
	tripID, err := id.ParseTripID(val)
	if err != nil {
		// A corrupt entry is treated as a miss; the store is authoritative.
		return id.TripID{}, ErrMiss
	}
	return tripID, nil
}

// Put records a token -> trip mapping.
func (c *Cache) Put(ctx context.Context, token string, tripID id.TripID) error {
	if err := c.client.Set(ctx, keyPrefix+token, tripID.String(), c.ttl).Err(); err != nil {
		return fmt.Errorf("share cache put: %w", err)
	}
	return nil
}

// Invalidate drops a token mapping. Invalidating an unknown token is a no-op.
func (c *Cache) Invalidate(ctx context.Context, token string) error {
	if err := c.client.Del(ctx, keyPrefix+token).Err(); err != nil {
		return fmt.Errorf("share cache invalidate: %w", err)
	}
	return nil
}
