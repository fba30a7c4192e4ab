package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stockpilot/stockpilot/internal/catalog"
)

// ProductCache caches the full product list per workspace with versioning
// controls. Mutating modules bump the version instead of deleting keys; stale
// entries simply expire.
type ProductCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProductCache instantiates the cache helper.
func NewProductCache(client *redis.Client, ttl time.Duration) *ProductCache {
	return &ProductCache{client: client, ttl: ttl}
}

func versionKey(workspaceID string) string {
	return fmt.Sprintf("catalog:%s:version", workspaceID)
}

// RefreshChannel names the pub/sub channel carrying product refresh signals
// for a workspace.
func RefreshChannel(workspaceID string) string {
	return fmt.Sprintf("catalog:%s:refresh", workspaceID)
}

// Version returns the current cache version for a workspace, initialising
// when missing.
func (c *ProductCache) Version(ctx context.Context, workspaceID string) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, versionKey(workspaceID)).Int64()
	if err == redis.Nil {
		if err := c.client.Set(ctx, versionKey(workspaceID), 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// Bump invalidates the workspace cache by incrementing the version and
// publishing a refresh signal for listeners.
func (c *ProductCache) Bump(ctx context.Context, workspaceID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	if _, err := c.client.Incr(ctx, versionKey(workspaceID)).Result(); err != nil {
		return err
	}
	return c.client.Publish(ctx, RefreshChannel(workspaceID), "refresh").Err()
}

// FetchProducts loads the cached product list or populates it via the loader.
func (c *ProductCache) FetchProducts(ctx context.Context, workspaceID string, loader func(context.Context) ([]catalog.Product, error)) ([]catalog.Product, error) {
	if loader == nil {
		return nil, errors.New("reports: cache loader required")
	}
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	ver, err := c.Version(ctx, workspaceID)
	if err != nil {
		return loader(ctx)
	}
	key := fmt.Sprintf("catalog:%s:products:%d", workspaceID, ver)

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var products []catalog.Product
		if err := json.Unmarshal(payload, &products); err == nil {
			return products, nil
		}
	} else if err != redis.Nil {
		return nil, err
	}

	products, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(products)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return nil, err
	}
	return products, nil
}
