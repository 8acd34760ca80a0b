// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() returns a Config populated with defaults.
// - Load(ctx) layers a YAML file and SCORESTAT_ environment variables on top.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Accepted values for the driver and strategy keys.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"

	StrategyRowWise  = "row_wise"
	StrategySetBased = "set_based"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8000".
	Addr string `koanf:"addr"`

	// DBDriver selects the store: sqlite, postgres or memory.
	DBDriver string `koanf:"db_driver"`

	// DBDSN is passed verbatim to the SQL driver.
	DBDSN string `koanf:"db_dsn"`

	// CacheDriver selects the ranking cache: memory, redis or none.
	CacheDriver string `koanf:"cache_driver"`

	// RedisAddr and RedisDB configure the redis cache backend.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	// CacheTTLSeconds is how long a cached ranking stays valid.
	CacheTTLSeconds int `koanf:"cache_ttl_seconds"`

	// BatchSize is the number of CSV rows per upsert flush.
	BatchSize int `koanf:"batch_size"`

	// ProgressEvery controls how often import progress is logged.
	ProgressEvery int `koanf:"progress_every"`

	// AggregationStrategy and RankingStrategy pick row_wise or set_based.
	AggregationStrategy string `koanf:"aggregation_strategy"`
	RankingStrategy     string `koanf:"ranking_strategy"`

	// CORSOrigins is a comma separated list of allowed origins.
	CORSOrigins string `koanf:"cors_origins"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":8000",
		DBDriver:            DriverSQLite,
		DBDSN:               "file:scorestat.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
		CacheDriver:         CacheMemory,
		RedisAddr:           "localhost:6379",
		RedisDB:             0,
		CacheTTLSeconds:     300,
		BatchSize:           1000,
		ProgressEvery:       100,
		AggregationStrategy: StrategySetBased,
		RankingStrategy:     StrategyRowWise,
		CORSOrigins:         "*",
	}
}

// CacheTTL returns CacheTTLSeconds as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// Origins splits CORSOrigins into trimmed, non-empty entries.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Validate checks that every key holds an accepted value.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch c.DBDriver {
	case DriverSQLite, DriverPostgres:
		if c.DBDSN == "" {
			return fmt.Errorf("%w: db_dsn must not be empty for %s", ErrInvalidConfig, c.DBDriver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("%w: unknown db_driver %q", ErrInvalidConfig, c.DBDriver)
	}
	switch c.CacheDriver {
	case CacheMemory, CacheNone:
	case CacheRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("%w: redis_addr must not be empty", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown cache_driver %q", ErrInvalidConfig, c.CacheDriver)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be positive", ErrInvalidConfig)
	}
	if c.CacheTTLSeconds < 0 {
		return fmt.Errorf("%w: cache_ttl_seconds must not be negative", ErrInvalidConfig)
	}
	for key, v := range map[string]string{
		"aggregation_strategy": c.AggregationStrategy,
		"ranking_strategy":     c.RankingStrategy,
	} {
		if v != StrategyRowWise && v != StrategySetBased {
			return fmt.Errorf("%w: unknown %s %q", ErrInvalidConfig, key, v)
		}
	}
	return nil
}
