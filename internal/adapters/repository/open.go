package repository

import (
	"context"

	"github.com/pkg/errors"
)

// Config selects and configures a backend.
type Config struct {
	Driver          string
	DSN             string
	BoltPath        string
	RedisAddr       string
	RedisDB         int
	RedisMaxRetries int
}

// Open builds the Store named by cfg.Driver: memory, bolt, sqlite3,
// postgres or redis.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", driverMemory:
		return NewMemoryStore(ctx), nil
	case driverBolt:
		return NewBoltStore(cfg.BoltPath)
	case DriverSQLite, DriverPostgres:
		return NewSQLStore(ctx, cfg.Driver, cfg.DSN)
	case driverRedis:
		return NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisDB, WithRedisMaxRetries(cfg.RedisMaxRetries))
	default:
		return nil, errors.Wrapf(ErrUnknownDriver, "%q", cfg.Driver)
	}
}
