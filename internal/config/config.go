package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Stripe    StripeConfig
	RateLimit RateLimitConfig
	Plans     PlansConfig
}

type StripeConfig struct {
	SecretKey        string
	WebhookSecret    string
	WebhookTolerance time.Duration
	// APIBaseURL overrides the Stripe API endpoint (stripe-mock, tests).
	APIBaseURL        string
	MaxNetworkRetries int64
}

type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	OwnerRate       float64
	OwnerBurst      int
	OwnerLockTTLSec int
}

// PlansConfig carries the Stripe price ID of every plan tier. Values set here
// take precedence over plans.yml.
type PlansConfig struct {
	File     string
	PriceIDs map[string]string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "happyinline-billing"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "postgres"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 300),
		Stripe: StripeConfig{
			SecretKey:         strings.TrimSpace(getenv("STRIPE_SECRET_KEY", "")),
			WebhookSecret:     strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
			WebhookTolerance:  time.Duration(getenvInt64("STRIPE_WEBHOOK_TOLERANCE_SECONDS", 300)) * time.Second,
			APIBaseURL:        strings.TrimSpace(getenv("STRIPE_API_BASE_URL", "")),
			MaxNetworkRetries: getenvInt64("STRIPE_MAX_NETWORK_RETRIES", 2),
		},
		RateLimit: RateLimitConfig{
			Enabled:         getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:       strings.TrimSpace(getenv("REDIS_ADDR", "")),
			RedisPassword:   getenv("REDIS_PASSWORD", ""),
			RedisDB:         getenvInt("REDIS_DB", 0),
			OwnerRate:       getenvFloat("RATE_LIMIT_OWNER_RATE", 0.5),
			OwnerBurst:      getenvInt("RATE_LIMIT_OWNER_BURST", 5),
			OwnerLockTTLSec: getenvInt("RATE_LIMIT_OWNER_LOCK_TTL_SECONDS", 30),
		},
		Plans: PlansConfig{
			File:     strings.TrimSpace(getenv("PLANS_FILE", "")),
			PriceIDs: planPriceIDs(),
		},
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

var planEnvKeys = map[string]string{
	"basic":        "STRIPE_PRICE_BASIC",
	"starter":      "STRIPE_PRICE_STARTER",
	"professional": "STRIPE_PRICE_PROFESSIONAL",
	"enterprise":   "STRIPE_PRICE_ENTERPRISE",
	"unlimited":    "STRIPE_PRICE_UNLIMITED",
}

func planPriceIDs() map[string]string {
	out := make(map[string]string, len(planEnvKeys))
	for planID, key := range planEnvKeys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			out[planID] = v
		}
	}
	return out
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	return int(getenvInt64(key, int64(def)))
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
