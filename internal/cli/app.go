package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aimd54/travelquest-rewards/internal/cache"
	"github.com/aimd54/travelquest-rewards/internal/config"
	"github.com/aimd54/travelquest-rewards/internal/notify"
	"github.com/aimd54/travelquest-rewards/internal/push"
	"github.com/aimd54/travelquest-rewards/internal/repository"
	"github.com/aimd54/travelquest-rewards/internal/service/badges"
	"github.com/aimd54/travelquest-rewards/internal/service/leaderboard"
	"github.com/aimd54/travelquest-rewards/internal/service/scheduler"
	"github.com/aimd54/travelquest-rewards/internal/service/settlement"
	"github.com/aimd54/travelquest-rewards/pkg/logger"
)

// app holds every wired component. Redis-backed parts are nil when Redis is unreachable.
type app struct {
	cfg *config.Config
	log *logger.Logger

	db      *repository.DB
	gw      *repository.Gateway
	rdb     *redis.Client
	catalog *cache.CatalogCache

	dispatcher  *notify.AsyncDispatcher
	badges      *badges.Service
	leaderboard *leaderboard.Service
	settlement  *settlement.Service
	scheduler   *scheduler.Service
}

// loadConfig reads the configuration and initializes the global logger.
func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	return cfg, logger.Get(), nil
}

func newApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*app, error) {
	location, err := cfg.Scheduler.GetLocation()
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler timezone: %w", err)
	}

	db, err := repository.NewDB(&cfg.Database.Postgres, log)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, db: db, gw: repository.NewGateway(db)}

	rdb, err := cache.NewRedisClient(ctx, &cfg.Database.Redis)
	if err != nil {
		log.Warn().Err(err).Str("addr", cfg.Database.Redis.Addr()).Msg("Redis unavailable, running without catalog cache and leaderboard")
	} else {
		a.rdb = rdb
		log.Info().Str("addr", cfg.Database.Redis.Addr()).Msg("Connected to Redis")
	}

	pusher := push.NewClient(&cfg.Notifications.Push, log)
	if !pusher.Enabled() {
		log.Info().Msg("Push delivery disabled, notifications are only stored")
	}
	a.dispatcher = notify.NewAsyncDispatcher(a.gw, pusher, &cfg.Notifications, log)

	// Interfaces stay untyped nil without Redis so services fall back to the database.
	var (
		catalogSource badges.CatalogSource
		board         leaderboard.Board
		mirror        settlement.PointsBoard
	)
	if a.rdb != nil {
		a.catalog = cache.NewCatalogCache(a.rdb, a.gw, cfg.Database.Redis.CacheTTL, log)
		catalogSource = a.catalog
		pointsBoard := cache.NewPointsBoard(a.rdb)
		board, mirror = pointsBoard, pointsBoard
	}

	a.badges = badges.NewService(a.gw, catalogSource, &cfg.SpecialBadges, a.dispatcher, location, log)
	a.leaderboard = leaderboard.NewService(a.gw, board, log)
	a.settlement = settlement.NewService(a.gw, a.badges, mirror, a.dispatcher, &cfg.Leveling, &cfg.Settlement, log)
	a.scheduler = scheduler.NewService(&cfg.Scheduler, cfg.Settlement.ReconcileBatch, a.settlement, a.badges, log)

	return a, nil
}

// close drains queued notifications and releases connections.
func (a *app) close(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := a.dispatcher.Shutdown(ctx); err != nil {
		a.log.Warn().Err(err).Msg("Notification queue not fully drained")
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Warn().Err(err).Msg("Failed to close Redis client")
		}
	}
	if err := a.db.Close(); err != nil {
		a.log.Warn().Err(err).Msg("Failed to close database")
	}
}
