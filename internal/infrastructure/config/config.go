package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the IM bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	Platforms PlatformsConfig `yaml:"platforms"`
	Devices   DevicesConfig   `yaml:"devices"`
	Bindings  BindingsConfig  `yaml:"bindings"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DatabaseConfig contains SQLite database settings for the notification history.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
	Pool      MQTTPoolConfig      `yaml:"pool"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains paho-level auto-reconnect settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// MQTTPoolConfig contains settings for the session-keyed connection pool.
//
// ConnectAttempts is the maximum number of connection attempts made when a
// session key is first seen; ConnectBackoff is the fixed delay (seconds)
// between attempts.
type MQTTPoolConfig struct {
	ConnectAttempts int `yaml:"connect_attempts"`
	ConnectBackoff  int `yaml:"connect_backoff"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// PlatformsConfig contains the chat platform adapter endpoints and tokens.
type PlatformsConfig struct {
	Line     LineConfig     `yaml:"line"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// LineConfig contains the LINE adapter endpoint and access token.
type LineConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	AccessToken string `yaml:"access_token"`
}

// TelegramConfig contains the Telegram adapter endpoint and bot token.
type TelegramConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	BotToken string `yaml:"bot_token"`
}

// DevicesConfig contains the supported-device allow-list and the executor
// endpoint document settings.
type DevicesConfig struct {
	// Supported is the static allow-list of controllable device IDs.
	Supported []string `yaml:"supported"`

	// EndpointsPath is the JSON document mapping manufacturer keys to
	// device executor base URLs. Reloaded by modification-time polling.
	EndpointsPath string `yaml:"endpoints_path"`

	// PollInterval is the endpoint document poll interval in seconds.
	PollInterval int `yaml:"poll_interval"`
}

// BindingsConfig contains the binding document settings.
type BindingsConfig struct {
	// Path is the JSON document mapping device IDs to binding records.
	Path string `yaml:"path"`

	// PollInterval is the document poll interval in seconds.
	PollInterval int `yaml:"poll_interval"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	Org     string `yaml:"org"`
	Bucket  string `yaml:"bucket"`

	// BatchSize is how many points are buffered before a write.
	BatchSize int `yaml:"batch_size"`

	// FlushInterval is the maximum buffering delay in seconds.
	FlushInterval int `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: IMBRIDGE_SECTION_KEY
// (e.g. IMBRIDGE_MQTT_HOST, IMBRIDGE_TELEGRAM_BOT_TOKEN).
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be read, parsed, or fails validation
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/imbridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "imbridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     120,
			},
			Pool: MQTTPoolConfig{
				ConnectAttempts: 5,
				ConnectBackoff:  5,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Platforms: PlatformsConfig{
			Line: LineConfig{
				Host: "localhost",
				Port: 5001,
			},
			Telegram: TelegramConfig{
				Host: "localhost",
				Port: 5000,
			},
		},
		Devices: DevicesConfig{
			Supported: []string{
				"esp32_light_001",
				"esp32_fan_002",
				"raspberrypi_light_001",
				"raspberrypi_fan_002",
			},
			EndpointsPath: "./data/device_endpoints.json",
			PollInterval:  1,
		},
		Bindings: BindingsConfig{
			Path:         "./data/bindings.json",
			PollInterval: 1,
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Org:           "imbridge",
			Bucket:        "device_status",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: IMBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("IMBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("IMBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("IMBRIDGE_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("IMBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("IMBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("IMBRIDGE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("IMBRIDGE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// Platform adapters and tokens
	if v := os.Getenv("IMBRIDGE_LINE_HOST"); v != "" {
		cfg.Platforms.Line.Host = v
	}
	if v := os.Getenv("IMBRIDGE_LINE_ACCESS_TOKEN"); v != "" {
		cfg.Platforms.Line.AccessToken = v
	}
	if v := os.Getenv("IMBRIDGE_TELEGRAM_HOST"); v != "" {
		cfg.Platforms.Telegram.Host = v
	}
	if v := os.Getenv("IMBRIDGE_TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Platforms.Telegram.BotToken = v
	}

	// Documents
	if v := os.Getenv("IMBRIDGE_BINDINGS_PATH"); v != "" {
		cfg.Bindings.Path = v
	}
	if v := os.Getenv("IMBRIDGE_DEVICE_ENDPOINTS_PATH"); v != "" {
		cfg.Devices.EndpointsPath = v
	}

	// InfluxDB
	if v := os.Getenv("IMBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("IMBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Pool.ConnectAttempts < 1 {
		errs = append(errs, "mqtt.pool.connect_attempts must be at least 1")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Device validation
	if len(c.Devices.Supported) == 0 {
		errs = append(errs, "devices.supported must list at least one device")
	}

	// Binding document validation
	if c.Bindings.Path == "" {
		errs = append(errs, "bindings.path is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetBindingsPollInterval returns the binding document poll interval as a Duration.
func (c *Config) GetBindingsPollInterval() time.Duration {
	return time.Duration(c.Bindings.PollInterval) * time.Second
}

// GetEndpointsPollInterval returns the endpoint document poll interval as a Duration.
func (c *Config) GetEndpointsPollInterval() time.Duration {
	return time.Duration(c.Devices.PollInterval) * time.Second
}
