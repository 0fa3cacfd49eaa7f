// Package config содержит логику чтения конфигурации сервиса бронирования парковок.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/davidbanez/park-angel-v1-sub008/internal/parkingtype"
)

// Config содержит параметры конфигурации сервиса.
type Config struct {
	RunAddress            string `env:"RUN_ADDRESS"`
	DatabaseURI           string `env:"DATABASE_URI"`
	PaymentGatewayAddress string `env:"PAYMENT_GATEWAY_ADDRESS"`
	RedisAddress          string `env:"REDIS_ADDRESS"`

	AuthSecret    string `env:"AUTH_SECRET"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`

	ReservationTTL  time.Duration `env:"RESERVATION_TTL" envDefault:"15m"`
	SweepInterval   time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
	PlatformFeeRate float64       `env:"PLATFORM_FEE_RATE" envDefault:"0.40"`

	StreetRushHourEnabled    bool    `env:"STREET_RUSH_HOUR_ENABLED" envDefault:"true"`
	StreetRushHourMultiplier float64 `env:"STREET_RUSH_HOUR_MULTIPLIER" envDefault:"1.5"`
	StreetNightEnabled       bool    `env:"STREET_NIGHT_ENABLED" envDefault:"true"`
	StreetNightMultiplier    float64 `env:"STREET_NIGHT_MULTIPLIER" envDefault:"0.5"`
	StreetWeekendEnabled     bool    `env:"STREET_WEEKEND_ENABLED" envDefault:"true"`
	StreetWeekendMultiplier  float64 `env:"STREET_WEEKEND_MULTIPLIER" envDefault:"0.8"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	RateLimitRPS       float64  `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst     int      `env:"RATE_LIMIT_BURST" envDefault:"40"`

	TimeZone string `env:"TIME_ZONE" envDefault:"UTC"`
	Location *time.Location
}

// StreetPricing возвращает множители уличной парковки.
func (c *Config) StreetPricing() parkingtype.StreetPricing {
	return parkingtype.StreetPricing{
		RushHourEnabled:    c.StreetRushHourEnabled,
		RushHourMultiplier: c.StreetRushHourMultiplier,
		NightEnabled:       c.StreetNightEnabled,
		NightMultiplier:    c.StreetNightMultiplier,
		WeekendEnabled:     c.StreetWeekendEnabled,
		WeekendMultiplier:  c.StreetWeekendMultiplier,
	}
}

// Parse считывает конфигурацию из флагов командной строки, переменных окружения и файла .env.
// Переменные окружения имеют приоритет над флагами.
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
	envPaymentAddress := cfg.PaymentGatewayAddress
	envRedisAddress := cfg.RedisAddress

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.PaymentGatewayAddress, "p", "", "payment gateway address")
	flag.StringVar(&cfg.RedisAddress, "r", "", "redis address for notifications")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envPaymentAddress != "" {
		cfg.PaymentGatewayAddress = envPaymentAddress
	}
	if envRedisAddress != "" {
		cfg.RedisAddress = envRedisAddress
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", cfg.TimeZone, err)
	}
	cfg.Location = loc

	if cfg.PlatformFeeRate < 0 || cfg.PlatformFeeRate >= 1 {
		return nil, fmt.Errorf("platform fee rate must be in [0, 1), got %v", cfg.PlatformFeeRate)
	}

	return cfg, nil
}
