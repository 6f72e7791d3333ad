package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port string `env:"PORT" envDefault:"8080"`
	Env  string `env:"APP_ENV" envDefault:"development"`

	StoreDriver  string `env:"STORE_DRIVER" envDefault:"redis"`
	RedisURL     string `env:"REDIS_URL" envDefault:"localhost:6379"`
	RedisPass    string `env:"REDIS_PASSWORD"`
	RedisDB      int    `env:"REDIS_DB" envDefault:"0"`
	PostgresDSN  string `env:"POSTGRES_DSN"`
	AutoMigrate  bool   `env:"DB_AUTO_MIGRATE" envDefault:"true"`
	EventChannel string `env:"EVENT_CHANNEL" envDefault:"fairplay:events"`
	EventBuffer  int    `env:"EVENT_BUFFER" envDefault:"1024"`

	JWTSecret string        `env:"JWT_SECRET" envDefault:"change-me"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"24h"`

	Limits    LimitsConfig    `envPrefix:"LIMITS_"`
	Fairness  FairnessConfig  `envPrefix:"FAIRNESS_"`
	AntiCheat AntiCheatConfig `envPrefix:"ANTICHEAT_"`
	Log       LogConfig       `envPrefix:"LOG_"`
}

// LimitsConfig holds bet limits and signup grants, all in cents.
type LimitsConfig struct {
	MinBetRegular  int64 `env:"MIN_BET_REGULAR" envDefault:"1000"`
	MinBetSweeps   int64 `env:"MIN_BET_SWEEPS" envDefault:"1000"`
	MaxBetRegular  int64 `env:"MAX_BET_REGULAR" envDefault:"100000"`
	MaxBetSweeps   int64 `env:"MAX_BET_SWEEPS" envDefault:"20000"`
	DailyMultiple  int64 `env:"DAILY_MULTIPLE" envDefault:"100"`
	InitialRegular int64 `env:"INITIAL_REGULAR" envDefault:"100000"`
	InitialSweeps  int64 `env:"INITIAL_SWEEPS" envDefault:"20000"`
}

type FairnessConfig struct {
	RoundTimeout  time.Duration `env:"ROUND_TIMEOUT" envDefault:"5m"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
	SweepBatch    int           `env:"SWEEP_BATCH" envDefault:"100"`
}

type AntiCheatConfig struct {
	Window           time.Duration `env:"WINDOW" envDefault:"5m"`
	TimingDeviation  float64       `env:"TIMING_DEVIATION" envDefault:"0.5"`
	MinTimingSamples int           `env:"MIN_TIMING_SAMPLES" envDefault:"2"`
	PatternThreshold float64       `env:"PATTERN_THRESHOLD" envDefault:"0.95"`
	MaxActions       int           `env:"MAX_ACTIONS" envDefault:"256"`
	MaxTrackedUsers  int           `env:"MAX_TRACKED_USERS" envDefault:"10000"`
}

type LogConfig struct {
	Level      string `env:"LEVEL" envDefault:"info"`
	File       string `env:"FILE"`
	MaxSizeMB  int    `env:"MAX_SIZE_MB" envDefault:"100"`
	MaxBackups int    `env:"MAX_BACKUPS" envDefault:"5"`
	MaxAgeDays int    `env:"MAX_AGE_DAYS" envDefault:"30"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	switch cfg.StoreDriver {
	case "redis", "postgres", "memory":
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	if cfg.StoreDriver == "postgres" && cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN is required for the postgres store")
	}

	if cfg.Env == "production" && cfg.JWTSecret == "change-me" {
		return nil, fmt.Errorf("JWT_SECRET must be set in production")
	}

	return &cfg, nil
}
