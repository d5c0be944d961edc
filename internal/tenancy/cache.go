package tenancy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ModuleCache keeps tenant entitlements in Redis for a short TTL so that
// every request does not hit Postgres.
type ModuleCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewModuleCache constructs the cache. A nil client disables caching.
func NewModuleCache(client *redis.Client, ttl time.Duration) *ModuleCache {
	return &ModuleCache{client: client, ttl: ttl}
}

func moduleKey(tenantID int64) string {
	return fmt.Sprintf("tenancy:modules:%d", tenantID)
}

// Fetch returns the cached module list or populates it using loader.
func (c *ModuleCache) Fetch(ctx context.Context, tenantID int64, loader func(context.Context) ([]string, error)) ([]string, error) {
	if loader == nil {
		return nil, errors.New("tenancy: loader required")
	}
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	key := moduleKey(tenantID)
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var modules []string
		if err := json.Unmarshal(payload, &modules); err == nil {
			return modules, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return nil, err
	}

	modules, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	if modules == nil {
		modules = []string{}
	}
	raw, err := json.Marshal(modules)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return nil, err
	}
	return modules, nil
}

// Invalidate drops the cached entitlements of one tenant.
func (c *ModuleCache) Invalidate(ctx context.Context, tenantID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, moduleKey(tenantID)).Err()
}
