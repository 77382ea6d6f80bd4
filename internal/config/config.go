package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

// Config is the full configuration surface of the service. Everything is
// static at process start; there is no hot reload.
type Config struct {
	AppEnv string `env:"APP_ENV" default:"development"`
	Port   string `env:"PORT" default:"8080"`

	ImgurAPIURL   string `env:"IMGUR_API_URL" default:"https://api.imgur.com/3/gallery/hot/viral/0.json"`
	ImgurClientID string `env:"IMGUR_CLIENT_ID"`

	PollInterval    time.Duration `env:"POLL_INTERVAL" default:"10s"`
	RecentSetSize   int           `env:"RECENT_SET_SIZE" default:"512"`
	ViewerQueueSize int           `env:"VIEWER_QUEUE_SIZE" default:"32"`
	MaxViewers      int           `env:"MAX_VIEWERS" default:"10000"`

	// Outbound requests to the gallery API are capped independently of the
	// poll interval, so an aggressive POLL_INTERVAL cannot hammer the API.
	SourceRateLimit float64 `env:"SOURCE_RATE_LIMIT" default:"1"`
	SourceRateBurst int     `env:"SOURCE_RATE_BURST" default:"2"`

	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.ImgurClientID == "" {
		return fmt.Errorf("IMGUR_CLIENT_ID is required")
	}
	if cfg.ImgurAPIURL == "" {
		return fmt.Errorf("IMGUR_API_URL must not be empty")
	}
	if cfg.PollInterval < time.Second {
		return fmt.Errorf("POLL_INTERVAL must be at least 1s, got %v", cfg.PollInterval)
	}
	if cfg.RecentSetSize < 1 {
		return fmt.Errorf("RECENT_SET_SIZE must be at least 1, got %d", cfg.RecentSetSize)
	}
	if cfg.ViewerQueueSize < 1 {
		return fmt.Errorf("VIEWER_QUEUE_SIZE must be at least 1, got %d", cfg.ViewerQueueSize)
	}
	if cfg.MaxViewers < 1 {
		return fmt.Errorf("MAX_VIEWERS must be at least 1, got %d", cfg.MaxViewers)
	}
	if cfg.SourceRateLimit <= 0 {
		return fmt.Errorf("SOURCE_RATE_LIMIT must be positive, got %v", cfg.SourceRateLimit)
	}
	if cfg.SourceRateBurst < 1 {
		return fmt.Errorf("SOURCE_RATE_BURST must be at least 1, got %d", cfg.SourceRateBurst)
	}
	return nil
}
