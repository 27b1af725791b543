// Package config defines service configuration and its loading order.
package config

import (
	"context"
	"runtime"
	"time"

	"github.com/okian/raceledger/internal/adapters/repository"
	"github.com/okian/raceledger/internal/domain/rating"
	"github.com/okian/raceledger/internal/domain/reward"
)

// Store driver names accepted in store_driver.
const (
	DriverMemory   = "memory"
	DriverBolt     = "bolt"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	StoreDriver     string `koanf:"store_driver"`
	StoreDSN        string `koanf:"store_dsn"`
	BoltPath        string `koanf:"bolt_path"`
	RedisAddr       string `koanf:"redis_addr"`
	RedisDB         int    `koanf:"redis_db"`
	RedisMaxRetries int    `koanf:"redis_max_retries"`

	// JWTSecret signs player bearer tokens (HS256). Empty disables tokens.
	JWTSecret string `koanf:"jwt_secret"`
	JWTIssuer string `koanf:"jwt_issuer"`
	// JWTTTL is the lifetime of issued tokens, e.g. "24h".
	JWTTTL time.Duration `koanf:"jwt_ttl"`
	// AllowAnonymous accepts X-Player-ID when no bearer token is sent.
	AllowAnonymous bool `koanf:"allow_anonymous"`
	// WSAllowedOrigins are browser origins besides the service's own host
	// that may open /ws.
	WSAllowedOrigins []string `koanf:"ws_allowed_origins"`

	// NotifyQueueSize bounds the notification queue.
	NotifyQueueSize int `koanf:"notify_queue_size"`
	NotifyWorkers   int `koanf:"notify_workers"`
	// InflightGuardSize bounds the concurrent-finish guard.
	InflightGuardSize int `koanf:"inflight_guard_size"`
	// AuditLogPath enables the JSONL notification audit when set.
	AuditLogPath string `koanf:"audit_log_path"`

	Rating rating.Config `koanf:"rating"`
	Reward reward.Config `koanf:"reward"`
}

// New returns the defaults. Context is accepted first to follow the
// project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		StoreDriver:       DriverMemory,
		BoltPath:          "raceledger.db",
		RedisAddr:         "localhost:6379",
		RedisMaxRetries:   10,
		JWTIssuer:         "raceledger",
		JWTTTL:            24 * time.Hour,
		AllowAnonymous:    true,
		NotifyQueueSize:   10_000,
		NotifyWorkers:     runtime.NumCPU(),
		InflightGuardSize: 100_000,
		Rating:            rating.DefaultConfig(),
		Reward:            reward.DefaultConfig(),
	}
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return invalid("addr must not be empty")
	}
	switch c.StoreDriver {
	case DriverMemory, "":
	case DriverBolt:
		if c.BoltPath == "" {
			return invalid("bolt_path is required for the bolt driver")
		}
	case DriverSQLite, repository.DriverSQLite, DriverPostgres:
		if c.StoreDSN == "" {
			return invalidf("store_dsn is required for the %s driver", c.StoreDriver)
		}
	case DriverRedis:
		if c.RedisAddr == "" {
			return invalid("redis_addr is required for the redis driver")
		}
	default:
		return invalidf("unknown store_driver %q", c.StoreDriver)
	}
	if c.JWTSecret == "" && !c.AllowAnonymous {
		return invalid("jwt_secret is required unless allow_anonymous is set")
	}
	if c.JWTTTL <= 0 {
		return invalid("jwt_ttl must be positive")
	}
	if c.NotifyQueueSize < 1 {
		return invalid("notify_queue_size must be positive")
	}
	if c.InflightGuardSize < 0 {
		return invalid("inflight_guard_size must not be negative")
	}
	if err := c.Rating.Validate(); err != nil {
		return wrapInvalid(err)
	}
	if err := c.Reward.Validate(); err != nil {
		return wrapInvalid(err)
	}
	return nil
}

// StoreConfig translates the store keys for repository.Open.
func (c *Config) StoreConfig() repository.Config {
	driver := c.StoreDriver
	if driver == DriverSQLite {
		driver = repository.DriverSQLite
	}
	return repository.Config{
		Driver:          driver,
		DSN:             c.StoreDSN,
		BoltPath:        c.BoltPath,
		RedisAddr:       c.RedisAddr,
		RedisDB:         c.RedisDB,
		RedisMaxRetries: c.RedisMaxRetries,
	}
}
