package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL,required"`
	SiteURL     string `env:"SITE_URL" envDefault:"http://localhost:3000"`

	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`

	SMTPHost  string `env:"SMTP_HOST"`
	SMTPPort  string `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser  string `env:"SMTP_USER"`
	SMTPPass  string `env:"SMTP_PASS"`
	FromEmail string `env:"FROM_EMAIL"`
	FromName  string `env:"FROM_NAME" envDefault:"InstaPhotoBooth"`

	// The admin bypass path is off unless explicitly enabled, and even
	// then only accepts a bcrypt-hashed code.
	AdminBypassEnabled  bool   `env:"ADMIN_BYPASS_ENABLED" envDefault:"false"`
	AdminBypassCodeHash string `env:"ADMIN_BYPASS_CODE_HASH"`

	AdminSessionMinutes int `env:"ADMIN_SESSION_MINUTES" envDefault:"15"`
	AdminEmailLimit     int `env:"ADMIN_EMAIL_LIMIT" envDefault:"5"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) AdminSessionTTL() time.Duration {
	return time.Duration(c.AdminSessionMinutes) * time.Minute
}

func (c *Config) Validate(isProduction bool) error {
	if c.AdminBypassEnabled {
		if !strings.HasPrefix(c.AdminBypassCodeHash, "$2a$") &&
			!strings.HasPrefix(c.AdminBypassCodeHash, "$2b$") &&
			!strings.HasPrefix(c.AdminBypassCodeHash, "$2y$") {
			return fmt.Errorf("ADMIN_BYPASS_CODE_HASH must be a bcrypt hash (generate with: go run scripts/hash-code.go <code>)")
		}
	}

	if isProduction {
		if c.AdminBypassEnabled {
			log.Warn().Msg("ADMIN_BYPASS_ENABLED is set in production: the bypass code grants free sessions")
		}
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required in production; the in-memory store loses all codes on restart")
		}
		if c.StripeSecretKey == "" || c.StripeWebhookSecret == "" {
			return fmt.Errorf("STRIPE_SECRET_KEY and STRIPE_WEBHOOK_SECRET are required in production")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if c.SMTPHost == "" {
			log.Warn().Msg("SMTP_HOST is empty in production: access codes and photos cannot be emailed")
		}
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
