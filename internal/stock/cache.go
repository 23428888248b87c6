package stock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// AvailabilityCache keeps per (product, warehouse) available-quantity
// snapshots in Redis. The ledger is the source of truth; the cache only
// serves read paths and is invalidated on every mutation.
type AvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAvailabilityCache constructs the cache.
func NewAvailabilityCache(client *redis.Client, ttl time.Duration) *AvailabilityCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &AvailabilityCache{client: client, ttl: ttl}
}

func availabilityKey(productID, warehouseID int64) string {
	return fmt.Sprintf("stock:avail:%d:%d", productID, warehouseID)
}

// Get returns the cached available quantity and whether the key was present.
func (c *AvailabilityCache) Get(ctx context.Context, productID, warehouseID int64) (float64, bool, error) {
	if c == nil || c.client == nil {
		return 0, false, nil
	}
	value, err := c.client.Get(ctx, availabilityKey(productID, warehouseID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, err
	}
	kg, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false, err
	}
	return kg, true, nil
}

// Set stores the available quantity snapshot.
func (c *AvailabilityCache) Set(ctx context.Context, productID, warehouseID int64, kg float64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Set(ctx, availabilityKey(productID, warehouseID), strconv.FormatFloat(kg, 'f', -1, 64), c.ttl).Err()
}

// Invalidate drops the snapshot after a ledger mutation.
func (c *AvailabilityCache) Invalidate(ctx context.Context, productID, warehouseID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, availabilityKey(productID, warehouseID)).Err()
}
