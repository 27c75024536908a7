package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/garyjia/expense-workflow/internal/domain/entity"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Currency CurrencyConfig `mapstructure:"currency"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Receipts ReceiptsConfig `mapstructure:"receipts"`
	Export   ExportConfig   `mapstructure:"export"`
	Lark     LarkConfig     `mapstructure:"lark"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Mode            string        `mapstructure:"mode"`
}

// Addr returns host:port for net/http
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	// MigrationsDir, when set, replaces the migrations embedded in the binary
	MigrationsDir string `mapstructure:"migrations_dir"`
}

// AuthConfig holds bearer token settings
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// CurrencyConfig holds the base currency and conversion rates into it
type CurrencyConfig struct {
	Base  string            `mapstructure:"base"`
	Rates map[string]string `mapstructure:"rates"`
}

// StorageConfig holds receipt storage configuration
type StorageConfig struct {
	ReceiptDir string `mapstructure:"receipt_dir"`
}

// ReceiptsConfig limits receipt uploads
type ReceiptsConfig struct {
	MaxBytes          int      `mapstructure:"max_bytes"`
	MaxPages          int      `mapstructure:"max_pages"`
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
	// SweepInterval of zero disables removal of unattached uploads
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	OrphanGrace   time.Duration `mapstructure:"orphan_grace"`
}

// ExportConfig holds spreadsheet export settings
type ExportConfig struct {
	FontFamily string `mapstructure:"font_family"`
}

// LarkConfig holds Lark API configuration
type LarkConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	AppID      string        `mapstructure:"app_id"`
	AppSecret  string        `mapstructure:"app_secret"`
	BaseURL    string        `mapstructure:"base_url"`
	APITimeout time.Duration `mapstructure:"api_timeout"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load reads configuration from configPath, an optional .env file and the environment.
// An empty configPath uses defaults and environment only.
func Load(configPath, envFile string) (*Config, error) {
	if envFile != "" {
		if err := gotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix("EXPENSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.mode", "release")

	// Database defaults
	v.SetDefault("database.path", "data/expenses.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 4)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Auth defaults
	v.SetDefault("auth.issuer", "expense-workflow")
	v.SetDefault("auth.token_ttl", 12*time.Hour)

	// Currency defaults
	v.SetDefault("currency.base", "INR")
	v.SetDefault("currency.rates", map[string]string{
		"USD": "83.00",
		"EUR": "90.00",
	})

	// Receipt defaults
	v.SetDefault("storage.receipt_dir", "data/receipts")
	v.SetDefault("receipts.max_bytes", 10<<20)
	v.SetDefault("receipts.max_pages", 20)
	v.SetDefault("receipts.allowed_extensions", []string{".pdf", ".jpg", ".jpeg", ".png"})
	v.SetDefault("receipts.sweep_interval", time.Hour)
	v.SetDefault("receipts.orphan_grace", 24*time.Hour)

	// Lark defaults
	v.SetDefault("lark.enabled", false)
	v.SetDefault("lark.api_timeout", 30*time.Second)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds the secrets to their conventional variable names
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("auth.jwt_secret", "EXPENSE_JWT_SECRET", "JWT_SECRET")
	_ = v.BindEnv("lark.app_id", "EXPENSE_LARK_APP_ID", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", "EXPENSE_LARK_APP_SECRET", "LARK_APP_SECRET")
	_ = v.BindEnv("database.path", "EXPENSE_DATABASE_PATH", "DATABASE_PATH")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("auth.jwt_secret must be at least 16 characters")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}

	if _, err := c.RateTable(); err != nil {
		return err
	}

	if c.Storage.ReceiptDir == "" {
		return fmt.Errorf("storage.receipt_dir is required")
	}
	if c.Receipts.MaxBytes <= 0 {
		return fmt.Errorf("receipts.max_bytes must be positive")
	}
	if c.Receipts.SweepInterval < 0 || c.Receipts.OrphanGrace < 0 {
		return fmt.Errorf("receipts.sweep_interval and receipts.orphan_grace must not be negative")
	}

	if c.Lark.Enabled {
		if c.Lark.AppID == "" {
			return fmt.Errorf("lark.app_id is required when lark is enabled")
		}
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_secret is required when lark is enabled")
		}
	}

	return nil
}

// RateTable builds the currency rate table used to normalise item amounts
func (c *Config) RateTable() (entity.RateTable, error) {
	base := strings.ToUpper(strings.TrimSpace(c.Currency.Base))
	if base == "" {
		return entity.RateTable{}, fmt.Errorf("currency.base is required")
	}

	rates := make(map[string]decimal.Decimal, len(c.Currency.Rates))
	for code, raw := range c.Currency.Rates {
		rate, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return entity.RateTable{}, fmt.Errorf("currency.rates.%s: %w", code, err)
		}
		if !rate.IsPositive() {
			return entity.RateTable{}, fmt.Errorf("currency.rates.%s must be positive", code)
		}
		rates[strings.ToUpper(code)] = rate
	}

	return entity.RateTable{Base: base, Rates: rates}, nil
}
