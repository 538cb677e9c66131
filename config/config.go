package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Stripe   StripeConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	AWS      AWSConfig
	CORS     CORSConfig

	// EnvFile is the dotenv file that was loaded, empty when none was found.
	EnvFile string `ignored:"true"`
}

type AppConfig struct {
	Env             string        `envconfig:"GO_ENV" default:"development"`
	Port            string        `envconfig:"PORT" default:"8080"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"json"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

type DatabaseConfig struct {
	URL             string        `envconfig:"DATABASE_URL"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"1h"`
}

type JWTConfig struct {
	Secret    string        `envconfig:"JWT_SECRET"`
	Issuer    string        `envconfig:"JWT_ISSUER" default:"autoshop-api"`
	Audience  string        `envconfig:"JWT_AUDIENCE" default:"autoshop-clients"`
	TTL       time.Duration `envconfig:"JWT_TTL" default:"24h"`
	ClockSkew time.Duration `envconfig:"JWT_CLOCK_SKEW" default:"30s"`
}

type StripeConfig struct {
	SecretKey     string `envconfig:"STRIPE_SECRET_KEY"`
	WebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	Currency      string `envconfig:"PAYMENT_CURRENCY" default:"usd"`
}

// SandboxMode reports whether payments run against the local sandbox gateway.
func (s StripeConfig) SandboxMode() bool {
	return s.SecretKey == ""
}

type RedisConfig struct {
	URL        string        `envconfig:"REDIS_URL"`
	WebhookTTL time.Duration `envconfig:"WEBHOOK_DEDUPE_TTL" default:"72h"`
}

type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS"`
	Topic   string   `envconfig:"KAFKA_ORDER_TOPIC" default:"order-events"`
}

type AWSConfig struct {
	Region          string `envconfig:"AWS_REGION" default:"us-east-1"`
	S3Bucket        string `envconfig:"AWS_S3_BUCKET"`
	S3Endpoint      string `envconfig:"AWS_S3_ENDPOINT"`
	AccessKeyID     string `envconfig:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `envconfig:"AWS_SECRET_ACCESS_KEY"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

// Load loads the configuration from environment variables.
// It first loads .env.<GO_ENV> when present, falling back to .env.
func Load() (*Config, error) {
	cfg := &Config{EnvFile: loadEnvFile()}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Stripe.Currency = strings.ToLower(cfg.Stripe.Currency)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadJWT loads only the token settings, for tools that mint tokens
// without touching the database.
func LoadJWT() (JWTConfig, error) {
	loadEnvFile()

	var cfg JWTConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("parsing jwt config: %w", err)
	}
	if cfg.Secret == "" {
		return cfg, fmt.Errorf("JWT_SECRET is required")
	}
	return cfg, nil
}

// loadEnvFile loads .env.<GO_ENV>, falling back to .env, and returns the
// file it read. Variables already set in the environment win.
func loadEnvFile() string {
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}

	envFile := fmt.Sprintf(".env.%s", env)
	if err := godotenv.Load(envFile); err == nil {
		return envFile
	}
	if err := godotenv.Load(); err == nil {
		return ".env"
	}
	return ""
}

// Validate checks that all required configuration values are set
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.IsProduction() {
		if c.Stripe.SecretKey == "" {
			return fmt.Errorf("STRIPE_SECRET_KEY is required in production")
		}
		if c.Stripe.WebhookSecret == "" {
			return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required in production")
		}
	}
	return nil
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// IsTest returns true if the application is running in test mode
func (c *Config) IsTest() bool {
	return c.App.Env == "test"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}
