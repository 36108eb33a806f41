package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the process reads from the environment. It is
// loaded once in main and passed into constructors; nothing else in the
// codebase touches os.Getenv.
type Config struct {
	Port        string
	GinMode     string
	Development bool
	LogLevel    string
	FrontendURL string

	DatabaseURL string
	RedisURL    string

	SupabaseURL            string
	SupabaseJWTSecret      string
	SupabaseServiceRoleKey string

	StripeSecretKey     string
	StripeWebhookSecret string
	StripePriceBasic    string
	StripePricePro      string

	OpenAIAPIKey string

	InternalAPIKey string

	InsightsRateLimit  int
	InsightsRateWindow time.Duration
	PeriodEndSweep     time.Duration
}

// Load reads the environment (and .env in development) into a Config.
// Required settings fail loud here rather than deep inside a request.
func Load() (*Config, error) {
	// Ignore error if .env file doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),

		SupabaseURL:            os.Getenv("SUPABASE_URL"),
		SupabaseJWTSecret:      os.Getenv("SUPABASE_JWT_SECRET"),
		SupabaseServiceRoleKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripePriceBasic:    os.Getenv("STRIPE_PRICE_BASIC"),
		StripePricePro:      os.Getenv("STRIPE_PRICE_PRO"),

		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),

		InternalAPIKey: os.Getenv("INTERNAL_API_KEY"),

		InsightsRateLimit:  getEnvInt("INSIGHTS_RATE_LIMIT", 10),
		InsightsRateWindow: time.Duration(getEnvInt("INSIGHTS_RATE_WINDOW_MINUTES", 60)) * time.Minute,
		PeriodEndSweep:     time.Duration(getEnvInt("PERIOD_END_SWEEP_MINUTES", 60)) * time.Minute,
	}
	cfg.Development = cfg.GinMode != "release"

	for name, v := range map[string]string{
		"DATABASE_URL":          cfg.DatabaseURL,
		"SUPABASE_URL":          cfg.SupabaseURL,
		"SUPABASE_JWT_SECRET":   cfg.SupabaseJWTSecret,
		"STRIPE_SECRET_KEY":     cfg.StripeSecretKey,
		"STRIPE_WEBHOOK_SECRET": cfg.StripeWebhookSecret,
	} {
		if v == "" {
			return nil, fmt.Errorf("%s environment variable not set", name)
		}
	}

	return cfg, nil
}

// JWTIssuer is the issuer claim Supabase stamps on its tokens.
func (c *Config) JWTIssuer() string {
	return c.SupabaseURL + "/auth/v1"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
