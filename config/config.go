package config

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string
	Env  string

	MongoURI          string
	MongoDatabase     string
	MongoTransactions bool

	RedisURL        string
	CheckoutLockTTL time.Duration
	IdempotencyTTL  time.Duration

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string

	StripeSecretKey         string
	StripeWebhookKey        string
	PlaceholderIntentAmount int64

	JWTSecret      string
	InternalAPIKey string
	AllowedOrigins []string

	CurrencyAPIURL      string
	RateRefreshInterval time.Duration

	AWSRegion          string
	AWSEndpoint        string
	AWSUseSecrets      bool
	OrderSNSTopicARN   string
	CloudWatchEnabled  bool
	CloudWatchLogGroup string
	MetricsNamespace   string
}

// SecretSource resolves a named key/value secret; satisfied by
// aws.SecretsClient.
type SecretSource interface {
	GetSecretBundle(ctx context.Context, name string) (map[string]string, error)
}

// LoadConfig reads the environment (and an optional .env file) and checks
// the required keys.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                    getEnv("PORT", "8088"),
		Env:                     getEnv("ENV", "development"),
		MongoURI:                os.Getenv("MONGODB_URI"),
		MongoDatabase:           getEnv("MONGODB_DATABASE", "anycommerce"),
		MongoTransactions:       getEnv("MONGO_TRANSACTIONS", "false") == "true",
		RedisURL:                getEnv("REDIS_URL", "redis://localhost:6379/0"),
		PostgresUser:            os.Getenv("POSTGRES_USER"),
		PostgresPassword:        os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:              os.Getenv("POSTGRES_DB"),
		PostgresHost:            os.Getenv("POSTGRES_HOST"),
		PostgresPort:            getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:         getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone:        getEnv("POSTGRES_TIMEZONE", "UTC"),
		StripeSecretKey:         os.Getenv("STRIPE_API_KEY"),
		StripeWebhookKey:        os.Getenv("STRIPE_WEBHOOK_SECRET"),
		JWTSecret:               os.Getenv("JWT_SECRET"),
		InternalAPIKey:          os.Getenv("INTERNAL_API_KEY"),
		AllowedOrigins:          strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:3000"), ","),
		CurrencyAPIURL:          getEnv("CURRENCY_API_URL", "https://v6.exchangerate-api.com/v6/demo"),
		AWSRegion:               getEnv("AWS_REGION", "us-east-1"),
		AWSEndpoint:             os.Getenv("AWS_ENDPOINT"),
		AWSUseSecrets:           getEnv("AWS_USE_SECRETS", "false") == "true",
		OrderSNSTopicARN:        os.Getenv("ORDER_SNS_TOPIC_ARN"),
		CloudWatchEnabled:       getEnv("CLOUDWATCH_ENABLED", "false") == "true",
		CloudWatchLogGroup:      getEnv("CLOUDWATCH_LOG_GROUP", "/ecommerce/services"),
		MetricsNamespace:        getEnv("CLOUDWATCH_NAMESPACE", "ECommerce"),
		PlaceholderIntentAmount: 50,
	}

	var err error
	if cfg.CheckoutLockTTL, err = getDuration("CHECKOUT_LOCK_TTL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.IdempotencyTTL, err = getDuration("IDEMPOTENCY_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RateRefreshInterval, err = getDuration("RATE_REFRESH_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if v := os.Getenv("PLACEHOLDER_INTENT_AMOUNT"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid PLACEHOLDER_INTENT_AMOUNT %q", v)
		}
		cfg.PlaceholderIntentAmount = n
	}

	// With secrets enabled the credentials are filled in later by ApplySecrets.
	if !cfg.AWSUseSecrets {
		if err := cfg.validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// ApplySecrets overrides credentials with the values of the
// "<env>/checkout-service" secret and validates the result. Keys missing
// from the secret keep their environment value.
func (c *Config) ApplySecrets(ctx context.Context, src SecretSource) error {
	name := fmt.Sprintf("%s/checkout-service", c.Env)
	bundle, err := src.GetSecretBundle(ctx, name)
	if err != nil {
		return fmt.Errorf("load secrets: %w", err)
	}

	targets := map[string]*string{
		"STRIPE_API_KEY":        &c.StripeSecretKey,
		"STRIPE_WEBHOOK_SECRET": &c.StripeWebhookKey,
		"JWT_SECRET":            &c.JWTSecret,
		"MONGODB_URI":           &c.MongoURI,
		"POSTGRES_PASSWORD":     &c.PostgresPassword,
		"INTERNAL_API_KEY":      &c.InternalAPIKey,
	}
	for key, dst := range targets {
		if v := bundle[key]; v != "" {
			*dst = v
		}
	}
	return c.validate()
}

// PostgresDSN builds the connection string for the payment ledger.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresPort, c.PostgresSSLMode, c.PostgresTimeZone)
}

func (c *Config) validate() error {
	var missing []string
	required := map[string]string{
		"MONGODB_URI":           c.MongoURI,
		"POSTGRES_USER":         c.PostgresUser,
		"POSTGRES_PASSWORD":     c.PostgresPassword,
		"POSTGRES_DB":           c.PostgresDB,
		"POSTGRES_HOST":         c.PostgresHost,
		"STRIPE_API_KEY":        c.StripeSecretKey,
		"STRIPE_WEBHOOK_SECRET": c.StripeWebhookKey,
		"JWT_SECRET":            c.JWTSecret,
	}
	for key, v := range required {
		if v == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
