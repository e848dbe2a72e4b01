package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration. It is built once at startup
// and passed explicitly to every component; nothing re-reads the
// environment deep inside business logic.
type Config struct {
	Environment string // development, staging, production
	Server      ServerConfig
	Database    DatabaseConfig
	Processor   ProcessorConfig
	Backend     BackendConfig
	Payments    PaymentsConfig
	Auth        AuthConfig
	Secrets     SecretsConfig
	Logger      LoggerConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port        int
	Host        string
	MetricsPort int
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// ProcessorConfig holds payment processor configuration
type ProcessorConfig struct {
	BaseURL         string
	PublicKey       string
	SecretKey       string // server-side only, never reaches a client
	MonthlyPlanCode string
	AnnualPlanCode  string
	WebhookSecret   string
	Timeout         int // request timeout in seconds
}

// BackendConfig holds the application backend used for the primary
// initialization path
type BackendConfig struct {
	BaseURL      string
	ServiceToken string
	Timeout      int
}

// PaymentsConfig holds checkout behavior configuration
type PaymentsConfig struct {
	CallbackURL string
	Currency    string
	// TestPaymentsEnabled gates the simulated payment path. It is an
	// explicit switch, never inferred from the environment name, and is
	// rejected outright in production.
	TestPaymentsEnabled bool
}

// AuthConfig holds bearer-token verification settings
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// SecretsConfig selects where the processor secret key is loaded from
type SecretsConfig struct {
	Backend       string // env, aws, vault
	AWSSecretName string
	AWSRegion     string
	VaultAddress  string
	VaultToken    string
	VaultPath     string
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string // debug, info, warn, error
	Development bool
}

// LoadFromEnv loads configuration from environment variables and
// validates it eagerly. A missing required key is a startup error so
// misconfiguration surfaces at deploy time, not on a user's first
// checkout attempt.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Port:        getEnvAsInt("SERVER_PORT", 8080),
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			MetricsPort: getEnvAsInt("METRICS_PORT", 9090),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "hope_subscriptions"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
			MaxConns: int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns: int32(getEnvAsInt("DB_MIN_CONNS", 5)),
		},
		Processor: ProcessorConfig{
			BaseURL:         getEnv("PROCESSOR_BASE_URL", "https://api.paystack.co"),
			PublicKey:       getEnv("PROCESSOR_PUBLIC_KEY", ""),
			SecretKey:       getEnv("PROCESSOR_SECRET_KEY", ""),
			MonthlyPlanCode: getEnv("PROCESSOR_MONTHLY_PLAN_CODE", ""),
			AnnualPlanCode:  getEnv("PROCESSOR_ANNUAL_PLAN_CODE", ""),
			WebhookSecret:   getEnv("PROCESSOR_WEBHOOK_SECRET", ""),
			Timeout:         getEnvAsInt("PROCESSOR_TIMEOUT", 30),
		},
		Backend: BackendConfig{
			BaseURL:      getEnv("BACKEND_BASE_URL", ""),
			ServiceToken: getEnv("BACKEND_SERVICE_TOKEN", ""),
			Timeout:      getEnvAsInt("BACKEND_TIMEOUT", 10),
		},
		Payments: PaymentsConfig{
			CallbackURL:         getEnv("PAYMENTS_CALLBACK_URL", ""),
			Currency:            getEnv("PAYMENTS_CURRENCY", "USD"),
			TestPaymentsEnabled: getEnvAsBool("TEST_PAYMENTS_ENABLED", false),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			Issuer:    getEnv("JWT_ISSUER", "hope-api"),
		},
		Secrets: SecretsConfig{
			Backend:       getEnv("SECRETS_BACKEND", "env"),
			AWSSecretName: getEnv("AWS_SECRET_NAME", ""),
			AWSRegion:     getEnv("AWS_REGION", "us-east-1"),
			VaultAddress:  getEnv("VAULT_ADDR", ""),
			VaultToken:    getEnv("VAULT_TOKEN", ""),
			VaultPath:     getEnv("VAULT_SECRET_PATH", "secret/data/payments"),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required fields. Secret-manager backends may fill the
// processor secret key after load, so only the env backend requires it
// up front.
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("CONFIG_ERROR: DB_PASSWORD is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("CONFIG_ERROR: JWT_SECRET is required")
	}
	if c.Secrets.Backend == "env" && c.Processor.SecretKey == "" {
		return fmt.Errorf("CONFIG_ERROR: PROCESSOR_SECRET_KEY is required")
	}
	if c.Payments.CallbackURL == "" {
		return fmt.Errorf("CONFIG_ERROR: PAYMENTS_CALLBACK_URL is required")
	}
	if c.IsProduction() && c.Payments.TestPaymentsEnabled {
		return fmt.Errorf("CONFIG_ERROR: TEST_PAYMENTS_ENABLED must not be set in production")
	}
	switch c.Secrets.Backend {
	case "env":
	case "aws":
		if c.Secrets.AWSSecretName == "" {
			return fmt.Errorf("CONFIG_ERROR: AWS_SECRET_NAME is required for the aws secrets backend")
		}
	case "vault":
		if c.Secrets.VaultAddress == "" || c.Secrets.VaultToken == "" {
			return fmt.Errorf("CONFIG_ERROR: VAULT_ADDR and VAULT_TOKEN are required for the vault secrets backend")
		}
	default:
		return fmt.Errorf("CONFIG_ERROR: unknown secrets backend %q", c.Secrets.Backend)
	}
	return nil
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// ConnectionString returns PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
