// Package config содержит логику чтения конфигурации сервиса штампов.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config содержит параметры конфигурации сервиса штампов.
type Config struct {
	RunAddress    string `env:"RUN_ADDRESS"`
	DatabaseURI   string `env:"DATABASE_URI"`
	StampQRSecret string `env:"STAMP_QR_SECRET"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`
	RedisAddress  string `env:"REDIS_ADDRESS"`

	ConfigCacheTTL time.Duration `env:"CONFIG_CACHE_TTL" envDefault:"10s"`
	PinRateLimit   float64       `env:"PIN_RATE_LIMIT" envDefault:"1"`
	PinRateBurst   int           `env:"PIN_RATE_BURST" envDefault:"5"`

	// DemoPin задаёт PIN администратора демо-заведения при работе без базы данных.
	DemoPin string `env:"DEMO_PIN" envDefault:"0000"`
}

// Parse считывает конфигурацию из файла .env, флагов командной строки и
// переменных окружения. Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envSecret := cfg.StampQRSecret
	envBaseURL := cfg.PublicBaseURL
	envRedisAddress := cfg.RedisAddress

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.StampQRSecret, "s", "", "secret for signing stamp QR tokens")
	flag.StringVar(&cfg.PublicBaseURL, "u", "", "public base URL for claim links")
	flag.StringVar(&cfg.RedisAddress, "r", "", "redis address for config invalidation")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envSecret != "" {
		cfg.StampQRSecret = envSecret
	}
	if envBaseURL != "" {
		cfg.PublicBaseURL = envBaseURL
	}
	if envRedisAddress != "" {
		cfg.RedisAddress = envRedisAddress
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = "http://" + cfg.RunAddress
	}
	if cfg.PinRateLimit <= 0 || cfg.PinRateBurst <= 0 {
		return nil, fmt.Errorf("pin rate limit must be positive: %v/%d", cfg.PinRateLimit, cfg.PinRateBurst)
	}

	return cfg, nil
}
