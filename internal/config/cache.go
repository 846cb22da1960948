package config

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
)

// CachedConfigStore wraps a ConfigStore with a read-through redis.Client
// cache: tool dispatch resolves a service config on every single call
// (spec.md §4.4), so repeated Get* lookups for the same (tenant, name) pair
// are the hot path this guards.
type CachedConfigStore struct {
	next  ConfigStore
	redis *redis.Client
	ttl   time.Duration
}

func NewCachedConfigStore(next ConfigStore, client *redis.Client, ttl time.Duration) *CachedConfigStore {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedConfigStore{next: next, redis: client, ttl: ttl}
}

func (c *CachedConfigStore) apiKey(tenantID, name string) string {
	return "flowengine:cfg:api:" + NormalizeTenantID(tenantID) + ":" + name
}

func (c *CachedConfigStore) dsKey(tenantID, name string) string {
	return "flowengine:cfg:ds:" + NormalizeTenantID(tenantID) + ":" + name
}

func (c *CachedConfigStore) udfKey(tenantID, name string) string {
	return "flowengine:cfg:udf:" + NormalizeTenantID(tenantID) + ":" + name
}

func (c *CachedConfigStore) GetApiService(ctx context.Context, tenantID, name string) (*ApiServiceConfig, error) {
	key := c.apiKey(tenantID, name)
	if raw, err := c.redis.Get(ctx, key).Bytes(); err == nil {
		var cfg ApiServiceConfig
		if json.Unmarshal(raw, &cfg) == nil {
			return &cfg, nil
		}
	}
	cfg, err := c.next.GetApiService(ctx, tenantID, name)
	if err != nil || cfg == nil {
		return cfg, err
	}
	if raw, err := json.Marshal(cfg); err == nil {
		c.redis.Set(ctx, key, raw, c.ttl)
	}
	return cfg, nil
}

func (c *CachedConfigStore) GetDatasource(ctx context.Context, tenantID, name string) (*DatasourceConfig, error) {
	key := c.dsKey(tenantID, name)
	if raw, err := c.redis.Get(ctx, key).Bytes(); err == nil {
		var cfg DatasourceConfig
		if json.Unmarshal(raw, &cfg) == nil {
			return &cfg, nil
		}
	}
	cfg, err := c.next.GetDatasource(ctx, tenantID, name)
	if err != nil || cfg == nil {
		return cfg, err
	}
	if raw, err := json.Marshal(cfg); err == nil {
		c.redis.Set(ctx, key, raw, c.ttl)
	}
	return cfg, nil
}

func (c *CachedConfigStore) GetUdf(ctx context.Context, tenantID, name string) (*UdfConfig, error) {
	key := c.udfKey(tenantID, name)
	if raw, err := c.redis.Get(ctx, key).Bytes(); err == nil {
		var cfg UdfConfig
		if json.Unmarshal(raw, &cfg) == nil {
			return &cfg, nil
		}
	}
	cfg, err := c.next.GetUdf(ctx, tenantID, name)
	if err != nil || cfg == nil {
		return cfg, err
	}
	if raw, err := json.Marshal(cfg); err == nil {
		c.redis.Set(ctx, key, raw, c.ttl)
	}
	return cfg, nil
}

func (c *CachedConfigStore) invalidate(ctx context.Context, keys ...string) {
	if len(keys) > 0 {
		c.redis.Del(ctx, keys...)
	}
}

func (c *CachedConfigStore) ListApiServices(ctx context.Context, tenantID string) ([]ApiServiceConfig, error) {
	return c.next.ListApiServices(ctx, tenantID)
}

func (c *CachedConfigStore) SaveApiService(ctx context.Context, tenantID string, cfg ApiServiceConfig) error {
	c.invalidate(ctx, c.apiKey(tenantID, cfg.Name))
	return c.next.SaveApiService(ctx, tenantID, cfg)
}

func (c *CachedConfigStore) DeleteApiService(ctx context.Context, tenantID, name string) error {
	c.invalidate(ctx, c.apiKey(tenantID, name))
	return c.next.DeleteApiService(ctx, tenantID, name)
}

func (c *CachedConfigStore) ListDatasources(ctx context.Context, tenantID string) ([]DatasourceConfig, error) {
	return c.next.ListDatasources(ctx, tenantID)
}

func (c *CachedConfigStore) SaveDatasource(ctx context.Context, tenantID string, cfg DatasourceConfig) error {
	c.invalidate(ctx, c.dsKey(tenantID, cfg.Name))
	return c.next.SaveDatasource(ctx, tenantID, cfg)
}

func (c *CachedConfigStore) DeleteDatasource(ctx context.Context, tenantID, name string) error {
	c.invalidate(ctx, c.dsKey(tenantID, name))
	return c.next.DeleteDatasource(ctx, tenantID, name)
}

func (c *CachedConfigStore) ListUdfs(ctx context.Context, tenantID string) ([]UdfConfig, error) {
	return c.next.ListUdfs(ctx, tenantID)
}

func (c *CachedConfigStore) SaveUdf(ctx context.Context, tenantID string, cfg UdfConfig) error {
	c.invalidate(ctx, c.udfKey(tenantID, cfg.Name))
	return c.next.SaveUdf(ctx, tenantID, cfg)
}

func (c *CachedConfigStore) DeleteUdf(ctx context.Context, tenantID, name string) error {
	c.invalidate(ctx, c.udfKey(tenantID, name))
	return c.next.DeleteUdf(ctx, tenantID, name)
}

var _ ConfigStore = (*CachedConfigStore)(nil)
