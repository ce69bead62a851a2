package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8090"`
	AgentURL  string `env:"AGENT_URL"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	// Coordination defaults; the agent's settings endpoint can override the
	// refresh cooldown at runtime.
	RefreshCooldownSeconds int           `env:"REFRESH_COOLDOWN_SECONDS" default:"60"`
	OperationTimeout       time.Duration `env:"OPERATION_TIMEOUT" default:"30s"`
	ToastDuration          time.Duration `env:"TOAST_DURATION" default:"3s"`

	// HTTP surface limits.
	APIRatePerSecond float64 `env:"API_RATE_PER_SECOND" default:"20"`
	APIRateBurst     int     `env:"API_RATE_BURST" default:"40"`
	MaxPushClients   int     `env:"MAX_PUSH_CLIENTS" default:"16"`
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
	if cfg.AgentURL == "" {
		return fmt.Errorf("AGENT_URL is required")
	}
	if _, err := url.ParseRequestURI(cfg.AgentURL); err != nil {
		return fmt.Errorf("AGENT_URL must be a valid URL: %w", err)
	}

	if cfg.RefreshCooldownSeconds < 0 {
		return fmt.Errorf("REFRESH_COOLDOWN_SECONDS must be >= 0, got %d", cfg.RefreshCooldownSeconds)
	}
	if cfg.OperationTimeout <= 0 {
		return fmt.Errorf("OPERATION_TIMEOUT must be positive, got %v", cfg.OperationTimeout)
	}
	if cfg.ToastDuration <= 0 {
		return fmt.Errorf("TOAST_DURATION must be positive, got %v", cfg.ToastDuration)
	}
	if cfg.APIRatePerSecond <= 0 || cfg.APIRateBurst <= 0 {
		return fmt.Errorf("API rate limit values must be positive")
	}
	if cfg.MaxPushClients <= 0 {
		return fmt.Errorf("MAX_PUSH_CLIENTS must be positive, got %d", cfg.MaxPushClients)
	}

	return nil
}
