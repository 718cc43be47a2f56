package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"retail-order-service/internal/models"

	"github.com/go-redis/redis/v8"
)

const catalogVersionKey = "catalog:version"

func catalogKey(version int64) string {
	return fmt.Sprintf("catalog:products:%d", version)
}

// CatalogCache keeps the serialized product listing in Redis under a
// versioned key. Invalidation bumps the version, so a listing read before a
// stock change can only be stored under a version nobody reads any more.
type CatalogCache struct {
	client *Client
	ttl    time.Duration
}

// NewCatalogCache creates a catalog cache with the given entry lifetime
func NewCatalogCache(client *Client, ttl time.Duration) *CatalogCache {
	return &CatalogCache{client: client, ttl: ttl}
}

func (c *CatalogCache) version(ctx context.Context) (int64, error) {
	v, err := c.client.rdb.Get(ctx, catalogVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("catalog version lookup failed: %w", err)
	}
	return v, nil
}

// GetProducts returns the cached listing for the current version and whether
// it was present. The version must be passed back to SetProducts on a miss.
func (c *CatalogCache) GetProducts(ctx context.Context) ([]models.Product, int64, bool, error) {
	version, err := c.version(ctx)
	if err != nil {
		return nil, 0, false, err
	}

	data, err := c.client.rdb.Get(ctx, catalogKey(version)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, version, false, nil
	}
	if err != nil {
		return nil, version, false, fmt.Errorf("catalog cache get failed: %w", err)
	}

	var products []models.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, version, false, fmt.Errorf("catalog cache decode failed: %w", err)
	}
	return products, version, true, nil
}

// SetProducts stores the listing read under version
func (c *CatalogCache) SetProducts(ctx context.Context, version int64, products []models.Product) error {
	data, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("catalog cache encode failed: %w", err)
	}
	return c.client.rdb.Set(ctx, catalogKey(version), data, c.ttl).Err()
}

// InvalidateProducts retires the current listing after a catalog or stock change
func (c *CatalogCache) InvalidateProducts(ctx context.Context) error {
	return c.client.rdb.Incr(ctx, catalogVersionKey).Err()
}
