// Package cache fronts the vault registry with Redis and keeps the
// passkey attempt counters.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/dmitrijs2005/vaultgate/internal/logging"
	"github.com/dmitrijs2005/vaultgate/internal/server/access"
	"github.com/dmitrijs2005/vaultgate/internal/server/models"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const searchableKey = "vaults:searchable"

var ErrCacheMiss = errors.New("cache miss")

// CachedRegistry serves ListSearchable from Redis. Cached vaults carry no
// passkey material, so GetByID, which feeds verification, always reads
// the source.
type CachedRegistry struct {
	client  *redis.Client
	source  access.Registry
	baseTTL time.Duration
	logger  logging.Logger
	sfg     singleflight.Group // collapses concurrent misses
}

func NewCachedRegistry(client *redis.Client, source access.Registry, ttl time.Duration, l logging.Logger) *CachedRegistry {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedRegistry{client: client, source: source, baseTTL: ttl, logger: l.With("module", "registry_cache")}
}

func (c *CachedRegistry) ListSearchable(ctx context.Context) ([]*models.Vault, error) {
	vaults, err := c.get(ctx)
	if err == nil {
		return vaults, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn(ctx, "registry cache unavailable", "error", err)
	}

	v, err, _ := c.sfg.Do(searchableKey, func() (interface{}, error) {
		vaults, err := c.source.ListSearchable(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.set(ctx, vaults); err != nil {
			c.logger.Warn(ctx, "registry cache write failed", "error", err)
		}
		return vaults, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*models.Vault), nil
}

func (c *CachedRegistry) GetByID(ctx context.Context, id string) (*models.Vault, error) {
	return c.source.GetByID(ctx, id)
}

// Invalidate drops the cached list so the next search reads the source.
func (c *CachedRegistry) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, searchableKey).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (c *CachedRegistry) get(ctx context.Context) ([]*models.Vault, error) {
	data, err := c.client.Get(ctx, searchableKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var vaults []*models.Vault
	if err := json.Unmarshal(data, &vaults); err != nil {
		return nil, fmt.Errorf("unmarshal vaults failed: %w", err)
	}
	return vaults, nil
}

func (c *CachedRegistry) set(ctx context.Context, vaults []*models.Vault) error {
	data, err := json.Marshal(vaults)
	if err != nil {
		return fmt.Errorf("marshal vaults failed: %w", err)
	}

	// up to a quarter of the base TTL, so replicas do not refresh in lockstep
	jitter := time.Duration(rand.Int63n(int64(c.baseTTL)/4 + 1))
	if err := c.client.Set(ctx, searchableKey, data, c.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}
