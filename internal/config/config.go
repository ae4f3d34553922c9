// Package config holds the environment-driven configuration of the server.
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	App    AppConfig
	HTTP   HTTPConfig
	PG     PGConfig
	Redis  RedisConfig
	Auth   AuthConfig
	Export ExportConfig
}

type AppConfig struct {
	Env string `env:"APP_ENV" env-default:"dev"`
}

type HTTPConfig struct {
	Port         string        `env:"HTTP_PORT" env-default:"8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"10s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
}

type PGConfig struct {
	DSN string `env:"PG_DSN" env-required:"true"`
}

// RedisConfig controls the optional active-session cache. The cache is
// enabled only when Addr is set.
type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR" env-default:""`
	Password string        `env:"REDIS_PASSWORD" env-default:""`
	DB       int           `env:"REDIS_DB" env-default:"0"`
	TTL      time.Duration `env:"REDIS_TTL" env-default:"30s"`
}

type AuthConfig struct {
	JWTSecret string        `env:"JWT_SECRET" env-required:"true"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" env-default:"24h"`
}

// ExportConfig controls the optional MySQL analytics export. The export
// loop runs only when DSN is set.
type ExportConfig struct {
	DSN      string        `env:"MYSQL_DSN" env-default:""`
	Interval time.Duration `env:"EXPORT_INTERVAL" env-default:"15m"`
	Lookback time.Duration `env:"EXPORT_LOOKBACK" env-default:"24h"`
}

// Load reads configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}
	return cfg, nil
}
