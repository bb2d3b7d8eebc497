package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration sourced from env vars.
type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	CORSOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	JWTSecret     string `envconfig:"JWT_SECRET" required:"true"`
	JWTIssuer     string `envconfig:"JWT_ISSUER" default:"loan-backend"`
	JWTTTLMinutes int    `envconfig:"JWT_TTL_MINUTES" default:"1440"`

	UploadDir      string `envconfig:"UPLOAD_DIR" default:"uploads"`
	AvatarMaxBytes int64  `envconfig:"AVATAR_MAX_BYTES" default:"10485760"`

	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"loan.events"`

	RateLimitRedisAddr     string `envconfig:"RATE_LIMIT_REDIS_ADDR"`
	RateLimitRedisPassword string `envconfig:"RATE_LIMIT_REDIS_PASSWORD"`
	RateLimitRedisDB       int    `envconfig:"RATE_LIMIT_REDIS_DB" default:"0"`
	AuthRateLimitPerMinute int    `envconfig:"AUTH_RATE_LIMIT_PER_MINUTE" default:"20"`

	AdminEmail    string `envconfig:"ADMIN_EMAIL"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD"`
	AdminName     string `envconfig:"ADMIN_NAME" default:"Administrator"`

	// LoanListAnyStaff lets either role read /loan/getloan instead of requiring both.
	LoanListAnyStaff bool `envconfig:"LOAN_LIST_ANY_STAFF" default:"false"`
}

// Load reads configuration from the environment and performs minimal validation.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.JWTSecret = strings.TrimSpace(cfg.JWTSecret)
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}
	if cfg.JWTTTLMinutes <= 0 {
		cfg.JWTTTLMinutes = 1440
	}
	if cfg.AvatarMaxBytes <= 0 {
		cfg.AvatarMaxBytes = 10 << 20
	}
	return cfg, nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

// JWTTTL is the lifetime of issued tokens.
func (c Config) JWTTTL() time.Duration {
	return time.Duration(c.JWTTTLMinutes) * time.Minute
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS, falling back to "*".
func (c Config) AllowedOrigins() []string {
	return parseCSV(c.CORSOrigins)
}

// BootstrapAdmin reports whether an admin account should be ensured at start.
func (c Config) BootstrapAdmin() bool {
	return strings.TrimSpace(c.AdminEmail) != "" && c.AdminPassword != ""
}

func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	var out []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
