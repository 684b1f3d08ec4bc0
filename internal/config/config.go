// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Storage       StorageConfig      `mapstructure:"storage"`
	Ledger        LedgerConfig       `mapstructure:"ledger"`
	Compliance    ComplianceConfig   `mapstructure:"compliance"`
	Anchor        AnchorConfig       `mapstructure:"anchor"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Server        ServerConfig       `mapstructure:"server"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// StorageConfig contains database configuration
type StorageConfig struct {
	Type             string        `mapstructure:"type"` // memory, sqlite, postgres
	ConnectionString string        `mapstructure:"connection_string"`
	MaxConnections   int           `mapstructure:"max_connections"`
	MaxIdleTime      time.Duration `mapstructure:"max_idle_time"`
}

// LedgerConfig contains append engine configuration
type LedgerConfig struct {
	StorageTimeout time.Duration `mapstructure:"storage_timeout"`
}

// ComplianceConfig contains threshold and report configuration
type ComplianceConfig struct {
	ThresholdsFile     string   `mapstructure:"thresholds_file"`
	RecommendedTests   []string `mapstructure:"recommended_tests"`
	ThresholdCacheSize int      `mapstructure:"threshold_cache_size"`
}

// AnchorConfig selects where appended ledger entries are mirrored
type AnchorConfig struct {
	Type         string        `mapstructure:"type"` // none, kafka
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// NotificationConfig contains compliance alert configuration
type NotificationConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	WebhookURL    string        `mapstructure:"webhook_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	QueueSize     int           `mapstructure:"queue_size"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port          int           `mapstructure:"port"`
	Host          string        `mapstructure:"host"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	EnableMetrics bool          `mapstructure:"enable_metrics"`
	EnableHealth  bool          `mapstructure:"enable_health"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
	Output string `mapstructure:"output"` // stdout, file
	File   string `mapstructure:"file"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	return load(viper.GetViper(), configPath)
}

func load(v *viper.Viper, configPath string) (*Config, error) {
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	// Set environment variable prefix
	v.SetEnvPrefix("AYUTRACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Override with environment variables if present
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Storage.ConnectionString = dbURL
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "ayutrace")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)

	// Storage defaults
	v.SetDefault("storage.type", "sqlite")
	v.SetDefault("storage.connection_string", "./data/ayutrace.db")
	v.SetDefault("storage.max_connections", 25)
	v.SetDefault("storage.max_idle_time", "15m")

	// Ledger defaults
	v.SetDefault("ledger.storage_timeout", "5s")

	// Compliance defaults
	v.SetDefault("compliance.thresholds_file", "")
	v.SetDefault("compliance.recommended_tests", []string{"microbial", "heavy-metals", "pesticide", "potency", "authenticity"})
	v.SetDefault("compliance.threshold_cache_size", 64)

	// Anchor defaults
	v.SetDefault("anchor.type", "none")
	v.SetDefault("anchor.topic", "ayutrace.ledger")
	v.SetDefault("anchor.write_timeout", "10s")

	// Notification defaults
	v.SetDefault("notifications.enabled", true)
	v.SetDefault("notifications.timeout", "10s")
	v.SetDefault("notifications.retry_attempts", 3)
	v.SetDefault("notifications.retry_delay", "1s")
	v.SetDefault("notifications.queue_size", 100)

	// Server defaults
	v.SetDefault("server.port", 8081)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.enable_metrics", true)
	v.SetDefault("server.enable_health", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "memory":
	case "sqlite", "postgres", "postgresql":
		if c.Storage.ConnectionString == "" {
			return fmt.Errorf("storage connection string is required")
		}
		if c.Storage.MaxConnections <= 0 {
			return fmt.Errorf("storage max connections must be positive")
		}
	default:
		return fmt.Errorf("unsupported storage type %q", c.Storage.Type)
	}
	if c.Ledger.StorageTimeout <= 0 {
		return fmt.Errorf("ledger storage timeout must be positive")
	}
	if c.Compliance.ThresholdCacheSize <= 0 {
		return fmt.Errorf("compliance threshold cache size must be positive")
	}
	switch c.Anchor.Type {
	case "", "none":
	case "kafka":
		if len(c.Anchor.Brokers) == 0 {
			return fmt.Errorf("kafka anchor requires at least one broker")
		}
		if c.Anchor.Topic == "" {
			return fmt.Errorf("kafka anchor topic is required")
		}
	default:
		return fmt.Errorf("unsupported anchor type %q", c.Anchor.Type)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}
	return nil
}
