package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"raffler/database"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string `yaml:"databaseUrl"  envconfig:"DATABASE_URL"`
	DatabaseName string `yaml:"databaseName" envconfig:"DATABASE_NAME"`

	// Admin HTTP API
	HTTPAddr string `yaml:"httpAddr" envconfig:"HTTP_ADDR"`

	// NATS configuration
	NATSServers string `yaml:"natsServers" envconfig:"NATS_SERVERS"` // NATS server addresses (comma-separated), empty disables

	// Settlement chain RPC
	ChainRPCHost string `yaml:"chainRpcHost" envconfig:"CHAIN_RPC_HOST"`
	ChainRPCUser string `yaml:"chainRpcUser" envconfig:"CHAIN_RPC_USER"`
	ChainRPCPass string `yaml:"chainRpcPass" envconfig:"CHAIN_RPC_PASS"`

	// Platform receiving address for entry purchases
	PlatformAddress string `yaml:"platformAddress" envconfig:"PLATFORM_ADDRESS"`

	// Draw configuration
	FinalityDepth         int64         `yaml:"finalityDepth"         envconfig:"FINALITY_DEPTH"`
	DefaultRandomnessMode string        `yaml:"defaultRandomnessMode" envconfig:"DEFAULT_RANDOMNESS_MODE"`
	RPCTimeout            time.Duration `yaml:"rpcTimeout"            envconfig:"RPC_TIMEOUT"`
	DrawWorkerInterval    time.Duration `yaml:"drawWorkerInterval"    envconfig:"DRAW_WORKER_INTERVAL"`

	// Entry verification
	MinConfirmations int64         `yaml:"minConfirmations" envconfig:"MIN_CONFIRMATIONS"`
	TxCacheTTL       time.Duration `yaml:"txCacheTtl"       envconfig:"TX_CACHE_TTL"`

	// Payout configuration
	PayoutTimeout     time.Duration `yaml:"payoutTimeout"     envconfig:"PAYOUT_TIMEOUT"`
	PayoutConcurrency int           `yaml:"payoutConcurrency" envconfig:"PAYOUT_CONCURRENCY"`
	AutoPayout        bool          `yaml:"autoPayout"        envconfig:"AUTO_PAYOUT"`

	// Discord result announcements (optional)
	DiscordToken     string `yaml:"discordToken"     envconfig:"DISCORD_TOKEN"`
	DiscordChannelID string `yaml:"discordChannelId" envconfig:"DISCORD_CHANNEL_ID"`

	// OpenTelemetry configuration
	OTelEnabled              bool   `yaml:"otelEnabled"              envconfig:"OTEL_ENABLED"`
	OTelExporterType         string `yaml:"otelExporterType"         envconfig:"OTEL_EXPORTER_TYPE"` // console, otlp, none
	OTelOTLPEndpoint         string `yaml:"otelOtlpEndpoint"         envconfig:"OTEL_OTLP_ENDPOINT"`
	OTelServiceName          string `yaml:"otelServiceName"          envconfig:"OTEL_SERVICE_NAME"`
	OTelExportIntervalMillis int    `yaml:"otelExportIntervalMillis" envconfig:"OTEL_EXPORT_INTERVAL_MILLIS"`

	// Logging
	LogLevel  string `yaml:"logLevel"  envconfig:"LOG_LEVEL"`
	LogFormat string `yaml:"logFormat" envconfig:"LOG_FORMAT"` // json or text

	// Environment
	Environment string `yaml:"environment" envconfig:"ENVIRONMENT"` // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests or Load), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load(os.Getenv("RAFFLER_CONFIG"))
		if err != nil {
			// In test environment, use a default test config instead of panicking
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// Load reads configuration from the given YAML file (optional) and the
// environment, and installs it as the global instance.
func Load(configFile string) (*Config, error) {
	cfg, err := load(configFile)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	instance = cfg
	return cfg, nil
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// NATSEnabled reports whether domain events should be forwarded to NATS
func (c *Config) NATSEnabled() bool {
	return strings.TrimSpace(c.NATSServers) != ""
}

// ChainEnabled reports whether a settlement chain RPC endpoint is configured
func (c *Config) ChainEnabled() bool {
	return strings.TrimSpace(c.ChainRPCHost) != ""
}

// DiscordEnabled reports whether draw results are announced on Discord
func (c *Config) DiscordEnabled() bool {
	return c.DiscordToken != "" && c.DiscordChannelID != ""
}

// defaults returns a config populated with built-in defaults
func defaults() *Config {
	return &Config{
		HTTPAddr:                 ":8080",
		FinalityDepth:            6,
		DefaultRandomnessMode:    "verifiable",
		RPCTimeout:               10 * time.Second,
		DrawWorkerInterval:       time.Minute,
		MinConfirmations:         1,
		TxCacheTTL:               30 * time.Second,
		PayoutTimeout:            60 * time.Second,
		PayoutConcurrency:        4,
		AutoPayout:               true,
		OTelExporterType:         "none",
		OTelServiceName:          "raffler",
		OTelExportIntervalMillis: 30000,
		LogLevel:                 "info",
		LogFormat:                "text",
	}
}

// load applies defaults, then the YAML file, then environment overrides
func load(configFile string) (*Config, error) {
	config := defaults()

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, config); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	if err := envconfig.Process("raffler", config); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks required settings and value ranges
func (c *Config) Validate() error {
	if c.Environment != "test" {
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
		// If DatabaseName is provided, ensure it's not empty
		if c.DatabaseName != "" && strings.TrimSpace(c.DatabaseName) == "" {
			return fmt.Errorf("DATABASE_NAME cannot be empty when provided")
		}
	}

	if c.PayoutConcurrency < 1 {
		return fmt.Errorf("PAYOUT_CONCURRENCY must be at least 1, got %d", c.PayoutConcurrency)
	}
	if c.FinalityDepth < 0 {
		return fmt.Errorf("FINALITY_DEPTH cannot be negative")
	}
	if c.MinConfirmations < 0 {
		return fmt.Errorf("MIN_CONFIRMATIONS cannot be negative")
	}

	switch c.DefaultRandomnessMode {
	case "verifiable", "opaque":
	default:
		return fmt.Errorf("DEFAULT_RANDOMNESS_MODE must be 'verifiable' or 'opaque', got %q", c.DefaultRandomnessMode)
	}

	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be 'json' or 'text', got %q", c.LogFormat)
	}

	return nil
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
// This should only be called from test files
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
// This should only be called from test files
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	cfg := defaults()
	cfg.Environment = "test"
	cfg.PlatformAddress = "DPlatformReceivingAddressXXXXXXXXX"
	cfg.AutoPayout = false
	return cfg
}
