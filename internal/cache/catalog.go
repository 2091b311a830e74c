package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aimd54/travelquest-rewards/internal/metrics"
	"github.com/aimd54/travelquest-rewards/internal/models"
	"github.com/aimd54/travelquest-rewards/pkg/logger"
)

// CatalogSource is the authoritative badge catalog.
type CatalogSource interface {
	ListBadgesByCategory(ctx context.Context, category string) ([]models.Badge, error)
}

// CatalogCache caches the badge catalog per category. Redis failures are logged and the
// request falls through to the source.
type CatalogCache struct {
	rdb    *redis.Client
	source CatalogSource
	ttl    time.Duration
	log    *logger.Logger
}

// NewCatalogCache creates a catalog cache in front of source.
func NewCatalogCache(rdb *redis.Client, source CatalogSource, ttl time.Duration, log *logger.Logger) *CatalogCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CatalogCache{
		rdb:    rdb,
		source: source,
		ttl:    ttl,
		log:    log.Component("catalog_cache"),
	}
}

// ListBadgesByCategory returns the cached badges of a category, loading them on a miss.
func (c *CatalogCache) ListBadgesByCategory(ctx context.Context, category string) ([]models.Badge, error) {
	key := fmt.Sprintf(KeyBadgeCategory, category)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var badges []models.Badge
		if jsonErr := json.Unmarshal(raw, &badges); jsonErr == nil {
			metrics.RecordCatalogCache("hit")
			return badges, nil
		}
		c.log.Warn().Str("key", key).Msg("Discarding undecodable catalog entry")
		metrics.RecordCatalogCache("error")
	case errors.Is(err, redis.Nil):
		metrics.RecordCatalogCache("miss")
	default:
		c.log.Warn().Err(err).Str("key", key).Msg("Catalog cache read failed, using store")
		metrics.RecordCatalogCache("error")
	}

	badges, err := c.source.ListBadgesByCategory(ctx, category)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(badges); err == nil {
		if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("Catalog cache write failed")
		}
	}
	return badges, nil
}

// Invalidate drops the cached catalog of every category.
func (c *CatalogCache) Invalidate(ctx context.Context) error {
	keys := make([]string, 0, len(models.BadgeCategories))
	for _, category := range models.BadgeCategories {
		keys = append(keys, fmt.Sprintf(KeyBadgeCategory, category))
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate badge catalog: %w", err)
	}
	return nil
}
