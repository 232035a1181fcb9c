package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all application settings.
type Config struct {
	Env      string `env:"APP_ENV" env-default:"development"`
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`

	Server   HTTPServer
	Database DatabaseConfig
	Auth     AuthConfig
	R2       R2Config
	SMTP     SMTPConfig

	// AppBaseURL is the public frontend origin used to build links in emails.
	AppBaseURL  string   `env:"APP_BASE_URL" env-default:"http://localhost:3000"`
	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"http://localhost:3000"`

	RateLimitRedisAddr     string `env:"RATE_LIMIT_REDIS_ADDR"`
	RateLimitRedisPassword string `env:"RATE_LIMIT_REDIS_PASSWORD"`
	RateLimitRedisDB       int    `env:"RATE_LIMIT_REDIS_DB" env-default:"0"`
}

type HTTPServer struct {
	Port            int           `env:"SERVER_PORT" env-default:"8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" env-default:"30s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" env-default:"120s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"15s"`
}

type DatabaseConfig struct {
	URL            string        `env:"DATABASE_URL" env-required:"true"`
	ConnectTimeout time.Duration `env:"DATABASE_CONNECT_TIMEOUT" env-default:"5s"`
	MaxOpenConns   int           `env:"DATABASE_MAX_OPEN_CONNS" env-default:"25"`
	MaxIdleConns   int           `env:"DATABASE_MAX_IDLE_CONNS" env-default:"25"`
}

type AuthConfig struct {
	JWTSecretKey   string        `env:"JWT_SECRET_KEY" env-required:"true"`
	AccessTokenTTL time.Duration `env:"JWT_ACCESS_TOKEN_TTL" env-default:"24h"`
}

type R2Config struct {
	AccountID       string `env:"R2_ACCOUNT_ID" env-required:"true"`
	AccessKeyID     string `env:"R2_ACCESS_KEY_ID" env-required:"true"`
	SecretAccessKey string `env:"R2_SECRET_ACCESS_KEY" env-required:"true"`
	BucketName      string `env:"R2_BUCKET_NAME" env-required:"true"`
	PublicBaseURL   string `env:"R2_PUBLIC_BASE_URL" env-default:"https://media.orbis.place"`
}

type SMTPConfig struct {
	Host     string `env:"SMTP_HOST" env-required:"true"`
	Port     int    `env:"SMTP_PORT" env-default:"587"`
	User     string `env:"SMTP_USER"`
	Password string `env:"SMTP_PASS"`
	From     string `env:"SMTP_FROM" env-default:"Orbis <no-reply@orbis.place>"`
}

// Load reads the configuration from the environment, loading an optional .env file first.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read configuration from environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
		return fmt.Errorf("SMTP_PORT must be between 1 and 65535, got %d", c.SMTP.Port)
	}
	if len(c.Auth.JWTSecretKey) < 16 {
		return fmt.Errorf("JWT_SECRET_KEY must be at least 16 characters long")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("JWT_ACCESS_TOKEN_TTL must be positive")
	}
	return nil
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
