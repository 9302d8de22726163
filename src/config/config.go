package config

import (
	"fmt"
	"os"
	"strings"

	"market-relay/src/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override secrets from the YAML file.
const (
	EnvAPIKey       = "SMARTAPI_API_KEY"
	EnvClientCode   = "SMARTAPI_CLIENT_CODE"
	EnvPIN          = "SMARTAPI_PIN"
	EnvTOTPSecret   = "SMARTAPI_TOTP_SECRET"
	EnvDBConnString = "DB_CONNECTION_STRING"
)

const (
	DefaultRestURL             = "https://apiconnect.angelone.in"
	DefaultStreamURL           = "wss://smartapisocket.angelone.in/smart-stream"
	DefaultIndexListURL        = "https://archives.nseindia.com/content/indices/ind_nifty50list.csv"
	DefaultUniverseListURL     = "https://archives.nseindia.com/content/indices/ind_nifty200list.csv"
	DefaultInstrumentMasterURL = "https://margincalculator.angelbroking.com/OpenAPI_File/files/OpenAPIScripMaster.json"
	DefaultFundamentalsURL     = "https://query2.finance.yahoo.com"
	DefaultUserAgent           = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.36"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// LoadEnv loads .env style files into the process environment.
// Missing files are ignored; variables already set win.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load env file '%s': %w", p, err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

// NewConfig creates a new Config instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	return Parse(data)
}

// -----------------------------------------------------------------------------

// Parse builds a Config from YAML bytes, applies defaults and environment
// overrides, then validates it.
func Parse(data []byte) (*Config, error) {
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyDefaults()
	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.Broker.RestURL == "" {
		c.Broker.RestURL = DefaultRestURL
	}
	if c.Broker.StreamURL == "" {
		c.Broker.StreamURL = DefaultStreamURL
	}

	r := &c.Relay
	if r.MaxRetryAttempts == 0 {
		r.MaxRetryAttempts = 5
	}
	if r.ConnectTimeoutSeconds == 0 {
		r.ConnectTimeoutSeconds = 10
	}
	if r.HeartbeatIntervalSeconds == 0 {
		r.HeartbeatIntervalSeconds = 10
	}
	if r.ClientBufferSize == 0 {
		r.ClientBufferSize = 256
	}
	if r.CorrelationID == "" {
		r.CorrelationID = "nifty50_full"
	}
	if r.Mode == 0 {
		r.Mode = models.ModeQuote
	}
	if r.HistoricalDays == 0 {
		r.HistoricalDays = 900
	}

	ref := &c.Reference
	if ref.IndexListURL == "" {
		ref.IndexListURL = DefaultIndexListURL
	}
	if ref.UniverseListURL == "" {
		ref.UniverseListURL = DefaultUniverseListURL
	}
	if ref.InstrumentMasterURL == "" {
		ref.InstrumentMasterURL = DefaultInstrumentMasterURL
	}
	if ref.FundamentalsURL == "" {
		ref.FundamentalsURL = DefaultFundamentalsURL
	}

	if c.Storage.DBType == "" {
		c.Storage.DBType = "sqlite"
	}

	n := &c.Network
	if n.RequestTimeout == 0 {
		n.RequestTimeout = 15
	}
	if n.ConcurrentRequests == 0 {
		n.ConcurrentRequests = 5
	}
	if n.RequestsPerSecond == 0 {
		n.RequestsPerSecond = 3
	}
	if n.UserAgent == "" {
		n.UserAgent = DefaultUserAgent
	}
}

// -----------------------------------------------------------------------------

func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	override(&c.Broker.APIKey, EnvAPIKey)
	override(&c.Broker.ClientCode, EnvClientCode)
	override(&c.Broker.PIN, EnvPIN)
	override(&c.Broker.TOTPSecret, EnvTOTPSecret)
	override(&c.Storage.DBConnectionString, EnvDBConnString)
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if c.GrpcPort != 0 && (c.GrpcPort <= 1024 || c.GrpcPort > 65535) {
		return fmt.Errorf("invalid grpc port number: %d (must be between 1025 and 65535)", c.GrpcPort)
	}

	// Broker credentials
	if c.Broker.APIKey == "" {
		return fmt.Errorf("broker api key cannot be empty (set %s)", EnvAPIKey)
	}
	if c.Broker.ClientCode == "" {
		return fmt.Errorf("broker client code cannot be empty (set %s)", EnvClientCode)
	}
	if c.Broker.PIN == "" {
		return fmt.Errorf("broker pin cannot be empty (set %s)", EnvPIN)
	}
	if c.Broker.TOTPSecret == "" {
		return fmt.Errorf("broker totp secret cannot be empty (set %s)", EnvTOTPSecret)
	}

	// Relay
	if c.Relay.MaxRetryAttempts < 0 {
		return fmt.Errorf("max retry attempts cannot be negative")
	}
	if c.Relay.ConnectTimeoutSeconds <= 0 {
		return fmt.Errorf("connect timeout must be greater than 0")
	}
	if c.Relay.ClientBufferSize <= 0 {
		return fmt.Errorf("client buffer size must be greater than 0")
	}
	// Change values need the close price, which LTP frames do not carry.
	switch c.Relay.Mode {
	case models.ModeQuote, models.ModeSnapQuote:
	default:
		return fmt.Errorf("unsupported subscription mode: %d (use %d or %d)", c.Relay.Mode, models.ModeQuote, models.ModeSnapQuote)
	}

	// Storage
	switch c.Storage.DBType {
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("database connection string cannot be empty for postgres")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Storage.DBType)
	}

	// Network
	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	if c.Network.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.Network.ConcurrentRequests <= 0 {
		return fmt.Errorf("concurrent requests must be greater than 0")
	}
	if c.Network.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second cannot be negative")
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path.
// Secrets are written as loaded, so only save files that stay private.
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0600 permissions)
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
