// Package config handles application configuration loading and validation using Viper.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Leveling      LevelingConfig      `mapstructure:"leveling"`
	Settlement    SettlementConfig    `mapstructure:"settlement"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Badges        BadgesConfig        `mapstructure:"badges"`
	SpecialBadges SpecialBadgesConfig `mapstructure:"special_badges"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Environment     string        `mapstructure:"environment"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig contains database connection settings for PostgreSQL and Redis.
type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains PostgreSQL database connection and pool settings.
type PostgresConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Database        string `mapstructure:"database"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// DSN returns the key/value connection string used by the gorm postgres driver.
func (c *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.sslMode())
}

// URL returns the postgres:// URL used by the migration driver.
func (c *PostgresConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + c.sslMode(),
	}
	return u.String()
}

func (c *PostgresConfig) sslMode() string {
	if c.SSLMode == "" {
		return "disable"
	}
	return c.SSLMode
}

// RedisConfig contains Redis cache connection and pool settings.
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	PoolSize int           `mapstructure:"pool_size"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// Addr returns the host:port address of the Redis server.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LevelingConfig describes the XP curve and the points to XP exchange rate.
type LevelingConfig struct {
	BaseThreshold int64   `mapstructure:"base_threshold"`
	GrowthFactor  float64 `mapstructure:"growth_factor"`
	XPPerPoint    float64 `mapstructure:"xp_per_point"`
}

// SettlementConfig contains mission settlement settings.
type SettlementConfig struct {
	StoreTimeout    time.Duration `mapstructure:"store_timeout"`
	ReconcileBatch  int           `mapstructure:"reconcile_batch"`
	LevelCASRetries int           `mapstructure:"level_cas_retries"`
}

// NotificationsConfig contains notification dispatcher settings.
type NotificationsConfig struct {
	QueueSize int        `mapstructure:"queue_size"`
	Workers   int        `mapstructure:"workers"`
	Push      PushConfig `mapstructure:"push"`
}

// PushConfig contains push gateway webhook settings.
type PushConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"`
	Enabled    bool          `mapstructure:"enabled"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries uint64        `mapstructure:"max_retries"`
}

// BadgesConfig points at the badge catalog seed file.
type BadgesConfig struct {
	SeedFile string `mapstructure:"seed_file"`
}

// SpecialBadgesConfig contains the minimums of the custom badge rules.
type SpecialBadgesConfig struct {
	PhotographerMinPhotos    int64 `mapstructure:"photographer_min_photos"`
	MarathonMinDailyMissions int64 `mapstructure:"marathon_min_daily_missions"`
}

// SchedulerConfig contains background job settings.
type SchedulerConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	ReconcileSchedule  string `mapstructure:"reconcile_schedule"`   // Cron expression
	BadgeSweepSchedule string `mapstructure:"badge_sweep_schedule"` // Cron expression
	Timezone           string `mapstructure:"timezone"`
}

// MetricsConfig contains metrics settings.
type MetricsConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig contains Prometheus metrics exporter settings.
type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig contains application logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.ssl_mode", "disable")
	v.SetDefault("database.postgres.max_open_conns", 25)
	v.SetDefault("database.postgres.max_idle_conns", 5)
	v.SetDefault("database.postgres.conn_max_lifetime", 300)
	v.SetDefault("database.redis.port", 6379)
	v.SetDefault("database.redis.pool_size", 10)
	v.SetDefault("database.redis.cache_ttl", 10*time.Minute)

	v.SetDefault("leveling.base_threshold", 50)
	v.SetDefault("leveling.growth_factor", 1.0)
	v.SetDefault("leveling.xp_per_point", 1.0)

	v.SetDefault("settlement.store_timeout", 5*time.Second)
	v.SetDefault("settlement.reconcile_batch", 100)
	v.SetDefault("settlement.level_cas_retries", 3)

	v.SetDefault("notifications.queue_size", 256)
	v.SetDefault("notifications.workers", 2)
	v.SetDefault("notifications.push.timeout", 10*time.Second)
	v.SetDefault("notifications.push.max_retries", 3)

	v.SetDefault("special_badges.photographer_min_photos", 50)
	v.SetDefault("special_badges.marathon_min_daily_missions", 10)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.reconcile_schedule", "*/5 * * * *")
	v.SetDefault("scheduler.badge_sweep_schedule", "0 3 * * *")
	v.SetDefault("scheduler.timezone", "UTC")

	v.SetDefault("metrics.prometheus.enabled", true)
	v.SetDefault("metrics.prometheus.path", "/metrics")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/travelquest/")
	}

	// Bind specific environment variables (explicit bindings for 12-factor app compliance)
	// Server configuration
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.environment", "SERVER_ENVIRONMENT")

	// PostgreSQL configuration
	_ = v.BindEnv("database.postgres.host", "POSTGRES_HOST")
	_ = v.BindEnv("database.postgres.port", "POSTGRES_PORT")
	_ = v.BindEnv("database.postgres.database", "POSTGRES_DB")
	_ = v.BindEnv("database.postgres.user", "POSTGRES_USER")
	_ = v.BindEnv("database.postgres.password", "POSTGRES_PASSWORD")
	_ = v.BindEnv("database.postgres.ssl_mode", "POSTGRES_SSL_MODE")
	_ = v.BindEnv("database.postgres.max_open_conns", "POSTGRES_MAX_OPEN_CONNS")
	_ = v.BindEnv("database.postgres.max_idle_conns", "POSTGRES_MAX_IDLE_CONNS")
	_ = v.BindEnv("database.postgres.conn_max_lifetime", "POSTGRES_CONN_MAX_LIFETIME")

	// Redis configuration
	_ = v.BindEnv("database.redis.host", "REDIS_HOST")
	_ = v.BindEnv("database.redis.port", "REDIS_PORT")
	_ = v.BindEnv("database.redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("database.redis.db", "REDIS_DB")
	_ = v.BindEnv("database.redis.pool_size", "REDIS_POOL_SIZE")
	_ = v.BindEnv("database.redis.cache_ttl", "REDIS_CACHE_TTL")

	// Leveling configuration
	_ = v.BindEnv("leveling.base_threshold", "LEVELING_BASE_THRESHOLD")
	_ = v.BindEnv("leveling.growth_factor", "LEVELING_GROWTH_FACTOR")
	_ = v.BindEnv("leveling.xp_per_point", "LEVELING_XP_PER_POINT")

	// Settlement configuration
	_ = v.BindEnv("settlement.store_timeout", "SETTLEMENT_STORE_TIMEOUT")
	_ = v.BindEnv("settlement.reconcile_batch", "SETTLEMENT_RECONCILE_BATCH")

	// Push notification configuration
	_ = v.BindEnv("notifications.push.webhook_url", "PUSH_WEBHOOK_URL")
	_ = v.BindEnv("notifications.push.enabled", "PUSH_ENABLED")
	_ = v.BindEnv("notifications.queue_size", "NOTIFICATIONS_QUEUE_SIZE")
	_ = v.BindEnv("notifications.workers", "NOTIFICATIONS_WORKERS")

	// Badge configuration
	_ = v.BindEnv("badges.seed_file", "BADGES_SEED_FILE")

	// Logging configuration
	_ = v.BindEnv("logging.level", "LOG_LEVEL")
	_ = v.BindEnv("logging.format", "LOG_FORMAT")
	_ = v.BindEnv("logging.output", "LOG_OUTPUT")

	// Scheduler configuration
	_ = v.BindEnv("scheduler.enabled", "SCHEDULER_ENABLED")
	_ = v.BindEnv("scheduler.reconcile_schedule", "SCHEDULER_RECONCILE_SCHEDULE")
	_ = v.BindEnv("scheduler.badge_sweep_schedule", "SCHEDULER_BADGE_SWEEP_SCHEDULE")
	_ = v.BindEnv("scheduler.timezone", "SCHEDULER_TIMEZONE")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if c.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if c.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}
	if c.Database.Redis.Host == "" {
		return fmt.Errorf("database.redis.host is required")
	}
	if c.Leveling.BaseThreshold <= 0 {
		return fmt.Errorf("leveling.base_threshold must be positive")
	}
	if c.Leveling.GrowthFactor < 1 {
		return fmt.Errorf("leveling.growth_factor must be at least 1")
	}
	if c.Leveling.XPPerPoint < 0 {
		return fmt.Errorf("leveling.xp_per_point must not be negative")
	}
	if c.Settlement.StoreTimeout <= 0 {
		return fmt.Errorf("settlement.store_timeout must be positive")
	}
	if c.Notifications.QueueSize <= 0 {
		return fmt.Errorf("notifications.queue_size must be positive")
	}
	if c.Notifications.Workers <= 0 {
		return fmt.Errorf("notifications.workers must be positive")
	}
	if c.Notifications.Push.Enabled && c.Notifications.Push.WebhookURL == "" {
		return fmt.Errorf("notifications.push.webhook_url is required when push is enabled")
	}

	return nil
}

// GetLocation returns the timezone location.
func (c *SchedulerConfig) GetLocation() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}
