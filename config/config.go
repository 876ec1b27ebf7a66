package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerConfig       ServerConfig       `json:"server"`
	DatabaseConfig     DatabaseConfig     `json:"database"`
	RedisConfig        RedisConfig        `json:"redis"`
	AuthConfig         AuthConfig         `json:"auth"`
	VaultConfig        VaultConfig        `json:"vault"`
	StripeConfig       StripeConfig       `json:"stripe"`
	PayoutConfig       PayoutConfig       `json:"payouts"`
	NotificationConfig NotificationConfig `json:"notification"`
	LoggingConfig      LoggingConfig      `json:"logging"`
}

// ServerConfig holds the HTTP API server configuration
type ServerConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	ProductionMode bool   `json:"production_mode"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds Redis settings for the destination cache and batch lock
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// AuthConfig holds JWT validation settings. Tokens are minted by the main
// marketplace application; this service only validates them.
type AuthConfig struct {
	Enabled             bool          `json:"enabled"`
	JWTSecret           string        `json:"jwt_secret"`
	AccessTokenDuration time.Duration `json:"access_token_duration"`
	Issuer              string        `json:"issuer"`
}

// VaultConfig holds HashiCorp Vault settings for payment processor credentials
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`
	SecretPath string `json:"secret_path"`
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

// StripeConfig holds payment processor settings. SecretKey and WebhookSecret
// are fallbacks for when Vault is disabled.
type StripeConfig struct {
	SecretKey     string `json:"secret_key"`
	WebhookSecret string `json:"webhook_secret"`
	BaseURL       string `json:"base_url"`
}

// PayoutConfig holds settlement engine settings
type PayoutConfig struct {
	FeeRate               float64 `json:"fee_rate"`                // service fee as a fraction of gross
	WorkerCount           int     `json:"worker_count"`            // bulk payout concurrency (1 = sequential)
	GatewayTimeoutSeconds int     `json:"gateway_timeout_seconds"` // per-transfer gateway call timeout
	SchedulerEnabled      bool    `json:"scheduler_enabled"`
	IntervalMinutes       int     `json:"interval_minutes"` // platform-wide batch cadence
	LockTTLMinutes        int     `json:"lock_ttl_minutes"` // batch lock TTL
}

type NotificationConfig struct {
	Enabled  bool           `json:"enabled"`
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord"`
}

type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

type DiscordConfig struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url"`
}

type LoggingConfig struct {
	Level       string `json:"level"`        // DEBUG, INFO, WARN, ERROR
	Output      string `json:"output"`       // stdout, stderr, or file path
	JSONFormat  bool   `json:"json_format"`  // Output as JSON
	IncludeFile bool   `json:"include_file"` // Include file and line number
}

// Load reads configuration from config.json (if present) and applies
// environment variable overrides on top.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if _, err := os.Stat("config.json"); err == nil {
		fileCfg, err := loadFromFile("config.json")
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		ServerConfig: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		DatabaseConfig: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Database: "gigmarket",
			SSLMode:  "disable",
		},
		RedisConfig: RedisConfig{
			Enabled:  false,
			Address:  "localhost:6379",
			PoolSize: 10,
		},
		AuthConfig: AuthConfig{
			Enabled:             true,
			AccessTokenDuration: 15 * time.Minute,
			Issuer:              "gig-marketplace",
		},
		VaultConfig: VaultConfig{
			MountPath:  "secret",
			SecretPath: "payments/stripe",
		},
		StripeConfig: StripeConfig{
			BaseURL: "https://api.stripe.com/v1",
		},
		PayoutConfig: PayoutConfig{
			FeeRate:               0.05,
			WorkerCount:           4,
			GatewayTimeoutSeconds: 30,
			SchedulerEnabled:      false,
			IntervalMinutes:       60,
			LockTTLMinutes:        15,
		},
		LoggingConfig: LoggingConfig{
			Level:      "INFO",
			Output:     "stdout",
			JSONFormat: true,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	cfg.ServerConfig.Host = getEnvOrDefault("SERVER_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.Port = getEnvIntOrDefault("SERVER_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.ProductionMode = getEnvOrDefault("PRODUCTION_MODE", boolString(cfg.ServerConfig.ProductionMode)) == "true"

	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", cfg.DatabaseConfig.Database)
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.DatabaseConfig.SSLMode)

	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", boolString(cfg.RedisConfig.Enabled)) == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)

	cfg.AuthConfig.Enabled = getEnvOrDefault("AUTH_ENABLED", boolString(cfg.AuthConfig.Enabled)) == "true"
	cfg.AuthConfig.JWTSecret = getEnvOrDefault("JWT_SECRET", cfg.AuthConfig.JWTSecret)
	cfg.AuthConfig.AccessTokenDuration = getEnvDurationOrDefault("JWT_ACCESS_DURATION", cfg.AuthConfig.AccessTokenDuration)
	cfg.AuthConfig.Issuer = getEnvOrDefault("JWT_ISSUER", cfg.AuthConfig.Issuer)

	cfg.VaultConfig.Enabled = getEnvOrDefault("VAULT_ENABLED", boolString(cfg.VaultConfig.Enabled)) == "true"
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", cfg.VaultConfig.Address)
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", cfg.VaultConfig.MountPath)
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", cfg.VaultConfig.SecretPath)

	cfg.StripeConfig.SecretKey = getEnvOrDefault("STRIPE_SECRET_KEY", cfg.StripeConfig.SecretKey)
	cfg.StripeConfig.WebhookSecret = getEnvOrDefault("STRIPE_WEBHOOK_SECRET", cfg.StripeConfig.WebhookSecret)
	cfg.StripeConfig.BaseURL = getEnvOrDefault("STRIPE_BASE_URL", cfg.StripeConfig.BaseURL)

	cfg.PayoutConfig.FeeRate = getEnvFloatOrDefault("PAYOUT_FEE_RATE", cfg.PayoutConfig.FeeRate)
	cfg.PayoutConfig.WorkerCount = getEnvIntOrDefault("PAYOUT_WORKER_COUNT", cfg.PayoutConfig.WorkerCount)
	cfg.PayoutConfig.GatewayTimeoutSeconds = getEnvIntOrDefault("PAYOUT_GATEWAY_TIMEOUT_SECONDS", cfg.PayoutConfig.GatewayTimeoutSeconds)
	cfg.PayoutConfig.SchedulerEnabled = getEnvOrDefault("PAYOUT_SCHEDULER_ENABLED", boolString(cfg.PayoutConfig.SchedulerEnabled)) == "true"
	cfg.PayoutConfig.IntervalMinutes = getEnvIntOrDefault("PAYOUT_INTERVAL_MINUTES", cfg.PayoutConfig.IntervalMinutes)
	cfg.PayoutConfig.LockTTLMinutes = getEnvIntOrDefault("PAYOUT_LOCK_TTL_MINUTES", cfg.PayoutConfig.LockTTLMinutes)

	cfg.NotificationConfig.Enabled = getEnvOrDefault("NOTIFICATIONS_ENABLED", boolString(cfg.NotificationConfig.Enabled)) == "true"
	cfg.NotificationConfig.Telegram.BotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", cfg.NotificationConfig.Telegram.BotToken)
	cfg.NotificationConfig.Telegram.ChatID = getEnvOrDefault("TELEGRAM_CHAT_ID", cfg.NotificationConfig.Telegram.ChatID)
	cfg.NotificationConfig.Discord.WebhookURL = getEnvOrDefault("DISCORD_WEBHOOK_URL", cfg.NotificationConfig.Discord.WebhookURL)

	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", cfg.LoggingConfig.Output)
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", boolString(cfg.LoggingConfig.JSONFormat)) == "true"
}

func (c *Config) validate() error {
	if c.PayoutConfig.FeeRate <= 0 || c.PayoutConfig.FeeRate >= 1 {
		return fmt.Errorf("payouts.fee_rate must be between 0 and 1, got %v", c.PayoutConfig.FeeRate)
	}
	if c.PayoutConfig.WorkerCount < 1 {
		c.PayoutConfig.WorkerCount = 1
	}
	if c.PayoutConfig.GatewayTimeoutSeconds <= 0 {
		c.PayoutConfig.GatewayTimeoutSeconds = 30
	}
	if c.AuthConfig.Enabled && c.AuthConfig.JWTSecret == "" {
		return fmt.Errorf("auth is enabled but JWT_SECRET is not set")
	}
	return nil
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := defaultConfig()
	if err := json.Unmarshal(file, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// GenerateSampleConfig creates a sample configuration file
func GenerateSampleConfig(filename string) error {
	cfg := defaultConfig()
	cfg.AuthConfig.JWTSecret = "change_me"
	cfg.StripeConfig.SecretKey = "sk_test_your_key_here"
	cfg.StripeConfig.WebhookSecret = "whsec_your_secret_here"

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
