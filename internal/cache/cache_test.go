package cache

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimd54/travelquest-rewards/internal/config"
	"github.com/aimd54/travelquest-rewards/internal/metrics"
	"github.com/aimd54/travelquest-rewards/internal/models"
	"github.com/aimd54/travelquest-rewards/pkg/logger"
)

type countingSource struct {
	badges map[string][]models.Badge
	calls  int
	err    error
}

func (s *countingSource) ListBadgesByCategory(_ context.Context, category string) ([]models.Badge, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.badges[category], nil
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)

	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	rdb, err := NewRedisClient(context.Background(), &config.RedisConfig{Host: mr.Host(), Port: port, PoolSize: 2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func newSource() *countingSource {
	return &countingSource{badges: map[string][]models.Badge{
		models.BadgeCategoryMissions: {
			{ID: 1, Name: "First Steps", Category: models.BadgeCategoryMissions, Threshold: 1},
			{ID: 2, Name: "Explorer", Category: models.BadgeCategoryMissions, Threshold: 10},
		},
	}}
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	_, err := NewRedisClient(context.Background(), &config.RedisConfig{Host: "127.0.0.1", Port: 1})
	assert.Error(t, err)
}

func TestCatalogCache_MissThenHit(t *testing.T) {
	mr, rdb := setupRedis(t)
	source := newSource()
	c := NewCatalogCache(rdb, source, time.Minute, logger.Nop())
	ctx := context.Background()

	hitsBefore := testutil.ToFloat64(metrics.CatalogCacheRequestsTotal.WithLabelValues("hit"))
	missesBefore := testutil.ToFloat64(metrics.CatalogCacheRequestsTotal.WithLabelValues("miss"))

	first, err := c.ListBadgesByCategory(ctx, models.BadgeCategoryMissions)
	require.NoError(t, err)
	second, err := c.ListBadgesByCategory(ctx, models.BadgeCategoryMissions)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, second, 2)
	assert.Equal(t, 1, source.calls)
	assert.True(t, mr.Exists("travelquest:badges:category:missions"))
	assert.Equal(t, time.Minute, mr.TTL("travelquest:badges:category:missions"))

	assert.Equal(t, hitsBefore+1, testutil.ToFloat64(metrics.CatalogCacheRequestsTotal.WithLabelValues("hit")))
	assert.Equal(t, missesBefore+1, testutil.ToFloat64(metrics.CatalogCacheRequestsTotal.WithLabelValues("miss")))
}

func TestCatalogCache_Expiry(t *testing.T) {
	mr, rdb := setupRedis(t)
	source := newSource()
	c := NewCatalogCache(rdb, source, time.Minute, logger.Nop())
	ctx := context.Background()

	_, err := c.ListBadgesByCategory(ctx, models.BadgeCategoryMissions)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = c.ListBadgesByCategory(ctx, models.BadgeCategoryMissions)
	require.NoError(t, err)

	assert.Equal(t, 2, source.calls)
}

func TestCatalogCache_FallsThroughWhenRedisDown(t *testing.T) {
	mr, rdb := setupRedis(t)
	source := newSource()
	c := NewCatalogCache(rdb, source, time.Minute, logger.Nop())
	mr.Close()

	badges, err := c.ListBadgesByCategory(context.Background(), models.BadgeCategoryMissions)
	require.NoError(t, err)
	assert.Len(t, badges, 2)
	assert.Equal(t, 1, source.calls)
}

func TestCatalogCache_CorruptEntry(t *testing.T) {
	mr, rdb := setupRedis(t)
	source := newSource()
	c := NewCatalogCache(rdb, source, time.Minute, logger.Nop())
	require.NoError(t, mr.Set("travelquest:badges:category:missions", "not json"))

	badges, err := c.ListBadgesByCategory(context.Background(), models.BadgeCategoryMissions)
	require.NoError(t, err)
	assert.Len(t, badges, 2)
	assert.Equal(t, 1, source.calls)
}

func TestCatalogCache_SourceError(t *testing.T) {
	mr, rdb := setupRedis(t)
	source := newSource()
	source.err = errors.New("store down")
	c := NewCatalogCache(rdb, source, time.Minute, logger.Nop())

	_, err := c.ListBadgesByCategory(context.Background(), models.BadgeCategoryMissions)
	assert.Error(t, err)
	assert.False(t, mr.Exists("travelquest:badges:category:missions"))
}

func TestCatalogCache_Invalidate(t *testing.T) {
	mr, rdb := setupRedis(t)
	source := newSource()
	c := NewCatalogCache(rdb, source, time.Minute, logger.Nop())
	ctx := context.Background()

	for _, category := range models.BadgeCategories {
		_, err := c.ListBadgesByCategory(ctx, category)
		require.NoError(t, err)
	}
	require.NoError(t, c.Invalidate(ctx))

	for _, category := range models.BadgeCategories {
		assert.False(t, mr.Exists("travelquest:badges:category:"+category), category)
	}
}

func TestPointsBoard(t *testing.T) {
	_, rdb := setupRedis(t)
	board := NewPointsBoard(rdb)
	ctx := context.Background()

	require.NoError(t, board.SetPoints(ctx, 1, 120))
	require.NoError(t, board.SetPoints(ctx, 2, 300))
	require.NoError(t, board.SetPoints(ctx, 3, 50))
	require.NoError(t, board.SetPoints(ctx, 1, 400))

	top, err := board.Top(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, Entry{UserID: 1, Points: 400, Rank: 1}, top[0])
	assert.Equal(t, Entry{UserID: 2, Points: 300, Rank: 2}, top[1])

	rank, err := board.Rank(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), rank)

	rank, err = board.Rank(ctx, 99)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rank)

	size, err := board.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), size)
}

func TestPointsBoard_Rebuild(t *testing.T) {
	_, rdb := setupRedis(t)
	board := NewPointsBoard(rdb)
	ctx := context.Background()

	require.NoError(t, board.SetPoints(ctx, 9, 1000))
	require.NoError(t, board.Rebuild(ctx, map[uint]int64{1: 10, 2: 20}))

	top, err := board.Top(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, uint(2), top[0].UserID)

	require.NoError(t, board.Rebuild(ctx, nil))
	size, err := board.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)
}
