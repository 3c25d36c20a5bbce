package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Env       string `env:"ENV,        default=development"`
	LogLevel  string `env:"LOG_LEVEL,  default=info"`
	LogPretty bool   `env:"LOG_PRETTY, default=false"`

	HTTP     HTTPConfig
	Backend  BackendConfig
	Store    StoreConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	Postgres PostgresConfig
}

type HTTPConfig struct {
	Listen             string `env:"LISTEN_ADDR,           default=127.0.0.1:8787"`
	LoginRatePerMinute int    `env:"LOGIN_RATE_PER_MINUTE, default=10"`
	LoginRateBurst     int    `env:"LOGIN_RATE_BURST,      default=5"`
}

type BackendConfig struct {
	URL     string        `env:"BACKEND_URL,     default=http://localhost:8080/api"`
	Timeout time.Duration `env:"BACKEND_TIMEOUT, default=15s"`
}

// StoreConfig selects the durable credential store.
// Driver is one of: bolt, memory, redis, mongo, postgres.
type StoreConfig struct {
	Driver        string `env:"STORE_DRIVER,         default=bolt"`
	Path          string `env:"STORE_PATH,           default=./data/session.db"`
	EncryptionKey string `env:"STORE_ENCRYPTION_KEY"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=clinic_session"`
}

type RedisConfig struct {
	Addr      string `env:"REDIS_ADDR,       default=localhost:6379"`
	DB        int    `env:"REDIS_DB,         default=0"`
	KeyPrefix string `env:"REDIS_KEY_PREFIX, default=clinic:"`
}

type PostgresConfig struct {
	DSN string `env:"POSTGRES_DSN, default=postgres://localhost:5432/clinic_session?sslmode=disable"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to load configuration: %w", err)
	}
	return &cfg, nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
