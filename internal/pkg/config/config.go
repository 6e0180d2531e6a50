package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port      string `env:"PORT,      default=8080"`
	Env       string `env:"ENV,       default=development"`
	JWTSecret string `env:"JWT_SECRET"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`

	// TokenTTL is the lifetime of provider-issued session tokens.
	TokenTTL time.Duration `env:"TOKEN_TTL, default=24h"`

	// HeartbeatInterval is the presence heartbeat cadence.
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL, default=600s"`

	// StalenessWindow is how long the change feed may stay silent before
	// the aggregator falls back to polling.
	StalenessWindow time.Duration `env:"STALENESS_WINDOW, default=90s"`

	// PollInterval is the fallback re-fetch cadence while the feed is stale.
	PollInterval time.Duration `env:"POLL_INTERVAL, default=120s"`

	Mongo MongoConfig
	Redis RedisConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=campus_market"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR, default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,   default=0"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return &cfg
}
