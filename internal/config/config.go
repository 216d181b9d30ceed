package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/validation"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig      `mapstructure:"server"`
	Database   DatabaseConfig    `mapstructure:"database"`
	Graph      GraphConfig       `mapstructure:"graph"`
	Synthesis  SynthesisConfig   `mapstructure:"synthesis"`
	Extraction ExtractionConfig  `mapstructure:"extraction"`
	Validation validation.Config `mapstructure:"validation"`
	Storage    StorageConfig     `mapstructure:"storage"`
	Worker     WorkerConfig      `mapstructure:"worker"`
	Logger     LoggerConfig      `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	WebhookPath  string        `mapstructure:"webhook_path"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// GraphConfig holds Microsoft Graph API configuration for email intake
type GraphConfig struct {
	TenantID      string        `mapstructure:"tenant_id"`
	ClientID      string        `mapstructure:"client_id"`
	ClientSecret  string        `mapstructure:"client_secret"`
	UserEmail     string        `mapstructure:"user_email"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	APITimeout    time.Duration `mapstructure:"api_timeout"`
}

// SynthesisConfig holds the generative field-refinement configuration
type SynthesisConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Enabled     bool          `mapstructure:"enabled"`
}

// ExtractionConfig holds document extraction configuration
type ExtractionConfig struct {
	// ConfidenceThresholds maps field name to the minimum extraction
	// confidence; fields below their threshold are queued for synthesis.
	ConfidenceThresholds map[string]float64 `mapstructure:"confidence_thresholds"`
	DefaultThreshold     float64            `mapstructure:"default_threshold"`
	MaxTextChars         int                `mapstructure:"max_text_chars"`
}

// StorageConfig holds PDF storage configuration
type StorageConfig struct {
	BaseDir     string `mapstructure:"base_dir"`
	RejectedDir string `mapstructure:"rejected_dir"`
}

// WorkerConfig holds the pipeline worker configuration
type WorkerConfig struct {
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	BatchSize      int           `mapstructure:"batch_size"`
	ProcessTimeout time.Duration `mapstructure:"process_timeout"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)
	viper.SetDefault("server.webhook_path", "/webhook/graph")

	// Database defaults
	viper.SetDefault("database.path", "data/invoices.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	// Graph defaults
	viper.SetDefault("graph.api_timeout", 30*time.Second)

	// Synthesis defaults
	viper.SetDefault("synthesis.enabled", true)
	viper.SetDefault("synthesis.model", "gpt-4o-mini")
	viper.SetDefault("synthesis.temperature", 0.2)
	viper.SetDefault("synthesis.max_tokens", 2048)
	viper.SetDefault("synthesis.timeout", 60*time.Second)

	// Extraction defaults mirror the production processor thresholds
	viper.SetDefault("extraction.default_threshold", 0.95)
	viper.SetDefault("extraction.confidence_thresholds", map[string]float64{
		"invoice_id":       0.95,
		"total_amount":     0.92,
		"supplier_name":    0.90,
		"invoice_date":     0.95,
		"net_amount":       0.90,
		"total_tax_amount": 0.88,
	})
	viper.SetDefault("extraction.max_text_chars", 5000)

	// Validation defaults
	def := validation.DefaultConfig()
	viper.SetDefault("validation.required_fields", def.RequiredFields)
	viper.SetDefault("validation.large_amount_threshold", def.LargeAmountThreshold)
	viper.SetDefault("validation.amount_tolerance_percent", def.AmountTolerancePercent)
	viper.SetDefault("validation.tax_tolerance_percent", def.TaxTolerancePercent)
	viper.SetDefault("validation.max_invoice_age_days", def.MaxInvoiceAgeDays)
	viper.SetDefault("validation.common_tax_rates", def.CommonTaxRates)
	viper.SetDefault("validation.enabled_rules", def.EnabledRules)

	// Storage defaults
	viper.SetDefault("storage.base_dir", "data/invoices-raw")
	viper.SetDefault("storage.rejected_dir", "data/invoices-rejected")

	// Worker defaults
	viper.SetDefault("worker.poll_interval", 10*time.Second)
	viper.SetDefault("worker.batch_size", 5)
	viper.SetDefault("worker.process_timeout", 120*time.Second)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	// Sensitive credentials from environment
	viper.BindEnv("graph.tenant_id", "AZURE_TENANT_ID")
	viper.BindEnv("graph.client_id", "AZURE_CLIENT_ID")
	viper.BindEnv("graph.client_secret", "AZURE_CLIENT_SECRET")
	viper.BindEnv("graph.user_email", "SENDER_EMAIL")
	viper.BindEnv("graph.webhook_secret", "OUTLOOK_WEBHOOK_SECRET")
	viper.BindEnv("synthesis.api_key", "OPENAI_API_KEY")
	viper.BindEnv("synthesis.base_url", "OPENAI_BASE_URL")
	viper.BindEnv("server.port", "PORT")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage base_dir is required")
	}
	if c.Synthesis.Enabled && c.Synthesis.APIKey == "" {
		return fmt.Errorf("synthesis.api_key is required when synthesis is enabled")
	}
	if c.Extraction.DefaultThreshold <= 0 || c.Extraction.DefaultThreshold > 1 {
		return fmt.Errorf("extraction.default_threshold must be in (0, 1], got %.2f", c.Extraction.DefaultThreshold)
	}
	if err := c.Validation.Validate(); err != nil {
		return fmt.Errorf("validation rules: %w", err)
	}
	return nil
}
