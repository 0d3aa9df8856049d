package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// AppConfig holds the global application configuration
var AppConfig *Config

// Config holds the application configuration
type Config struct {
	// DatabaseURL selects the driver: postgres:// URLs use lib/pq, anything else is a sqlite path.
	DatabaseURL         string `env:"DATABASE_URL" envDefault:"entitlements.db"`
	StripeSecretKey     string `env:"STRIPE_SECRET_KEY,required,notEmpty"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	// Optional: base URL for running remote HTTP integration tests (e.g., https://api.example.com)
	IntegrationBaseURL string `env:"INTEGRATION_BASE_URL"`
	// Server ports
	HTTPPort string `env:"PORT" envDefault:"8080"`
	GRPCPort string `env:"GRPC_PORT" envDefault:"50051"`

	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s"`
	TrialDuration   time.Duration `env:"TRIAL_DURATION" envDefault:"168h"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	config := &Config{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if config.ProviderTimeout < 0 {
		return nil, fmt.Errorf("PROVIDER_TIMEOUT must not be negative, got %s", config.ProviderTimeout)
	}
	if config.TrialDuration <= 0 {
		return nil, fmt.Errorf("TRIAL_DURATION must be positive, got %s", config.TrialDuration)
	}

	return config, nil
}

// loadDotEnv loads the nearest .env file from the current directory or its parents.
// Variables already present in the environment win over the file.
func loadDotEnv() error {
	currentDir, _ := os.Getwd()
	for currentDir != "" {
		envPath := filepath.Join(currentDir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				return fmt.Errorf("failed to load .env file: %v", err)
			}
			return nil
		}
		parent := filepath.Dir(currentDir)
		if parent == currentDir {
			return nil
		}
		currentDir = parent
	}
	return nil
}
