// Package config loads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	BotToken      string `envconfig:"BOT_TOKEN"`
	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"postgres"`
	DatabaseURL   string `envconfig:"DATABASE_URL" default:"host=localhost user=user password=password dbname=anonchat port=5432 sslmode=disable"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	SecretSalt string `envconfig:"SECRET_SALT" default:"change-me"`
	JWTSecret  string `envconfig:"JWT_SECRET" default:"change-me-too"`

	HTTPAddr      string `envconfig:"HTTP_ADDR" default:":8080"`
	AdminAddr     string `envconfig:"ADMIN_ADDR" default:":8081"`
	AdminUsername string `envconfig:"ADMIN_USERNAME" default:"admin"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD" default:"admin"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Locale   string `envconfig:"LOCALE" default:"ru"`
}

// Load reads .env when present and then the process environment.
// A missing .env file is not an error.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.StorageDriver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("STORAGE_DRIVER must be postgres or memory, got %q", c.StorageDriver)
	}
	if c.SecretSalt == "" {
		return fmt.Errorf("SECRET_SALT must not be empty")
	}
	return nil
}
