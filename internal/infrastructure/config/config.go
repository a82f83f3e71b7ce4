package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Snappy bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Hub        HubConfig        `yaml:"hub"`
	Snapserver SnapserverConfig `yaml:"snapserver"`
	Yamaha     YamahaConfig     `yaml:"yamaha"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// HubConfig contains broadcast hub settings.
//
// The hub is served by this process on Host:Port under /{Path}/hub; the
// adapters dial it back using Protocol/Target/Port/Path. Keeping both halves
// in one section mirrors the deployment where several bridge processes share
// one central hub.
type HubConfig struct {
	// Host and Port are the listen address for the hub HTTP server.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Protocol is the scheme the back-channel uses to reach the hub: "ws" or "wss".
	Protocol string `yaml:"protocol"`

	// Target is the host name the back-channel dials.
	Target string `yaml:"target"`

	// Path is the base URL path segment, e.g. "snappy" → /snappy/hub.
	Path string `yaml:"path"`

	// RetryDelay is the fixed delay in seconds between connection attempts.
	RetryDelay int `yaml:"retry_delay"`

	WebSocket WebSocketConfig `yaml:"websocket"`
}

// WebSocketConfig contains WebSocket connection tuning shared by the hub
// server and the back-channel client.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// SnapserverConfig contains Snapcast server connection settings.
//
// The same endpoint serves both transports: HTTP POST for request/response
// RPC and a WebSocket upgrade for push notifications.
type SnapserverConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// RPCPath is the JSON-RPC endpoint path on the snapserver.
	RPCPath string `yaml:"rpc_path"`

	// RetryDelay is the fixed delay in seconds between connection attempts
	// for the notification socket.
	RetryDelay int `yaml:"retry_delay"`
}

// HTTPURL returns the HTTP endpoint for request/response JSON-RPC calls.
func (s SnapserverConfig) HTTPURL() string {
	return fmt.Sprintf("http://%s:%d%s", s.Host, s.Port, s.RPCPath)
}

// WebSocketURL returns the WebSocket endpoint for push notifications.
func (s SnapserverConfig) WebSocketURL() string {
	return fmt.Sprintf("ws://%s:%d%s", s.Host, s.Port, s.RPCPath)
}

// GetRetryDelay returns the notification socket retry delay as a Duration.
func (s SnapserverConfig) GetRetryDelay() time.Duration {
	return time.Duration(s.RetryDelay) * time.Second
}

// YamahaConfig contains AV receiver polling settings.
type YamahaConfig struct {
	// Sources lists the receivers to poll. Each source name doubles as the
	// hub group the receiver's updates are published to.
	Sources []ReceiverSource `yaml:"sources"`

	// PollInterval is the tick interval in seconds.
	PollInterval int `yaml:"poll_interval"`

	// MaxConcurrent caps how many receivers are polled at once per tick.
	MaxConcurrent int `yaml:"max_concurrent"`
}

// ReceiverSource identifies one polled receiver.
type ReceiverSource struct {
	// Source is the logical id, shared with the hub group name (e.g. a zone id).
	Source string `yaml:"source"`

	// URL is the receiver's host[:port], without scheme.
	URL string `yaml:"url"`
}

// InfluxDBConfig contains InfluxDB telemetry settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
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
// The hub endpoint overrides keep the names the original deployment used:
// HUB_PROTOCOL, HUB_TARGET, HUB_PORT, HUB_PATH. Everything else follows the
// pattern SNAPPY_SECTION_KEY (e.g. SNAPPY_SNAPSERVER_HOST).
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Hub: HubConfig{
			Host:       "0.0.0.0",
			Port:       5001,
			Protocol:   "ws",
			Target:     "localhost",
			Path:       "snappy",
			RetryDelay: 1,
			WebSocket: WebSocketConfig{
				MaxMessageSize: 8192,
				PingInterval:   30,
				PongTimeout:    10,
			},
		},
		Snapserver: SnapserverConfig{
			Host:       "localhost",
			Port:       1780,
			RPCPath:    "/jsonrpc",
			RetryDelay: 1,
		},
		Yamaha: YamahaConfig{
			PollInterval:  1,
			MaxConcurrent: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Overrides are resolved once here, never read lazily at call sites.
func applyEnvOverrides(cfg *Config) {
	// Hub endpoint (original deployment names, see Load doc comment)
	if v := os.Getenv("HUB_PROTOCOL"); v != "" {
		cfg.Hub.Protocol = v
	}
	if v := os.Getenv("HUB_TARGET"); v != "" {
		cfg.Hub.Target = v
	}
	if v := os.Getenv("HUB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Hub.Port = port
		}
	}
	if v := os.Getenv("HUB_PATH"); v != "" {
		cfg.Hub.Path = v
	}

	// Snapserver
	if v := os.Getenv("SNAPPY_SNAPSERVER_HOST"); v != "" {
		cfg.Snapserver.Host = v
	}
	if v := os.Getenv("SNAPPY_SNAPSERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Snapserver.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("SNAPPY_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("SNAPPY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Hub.Port < 1 || c.Hub.Port > 65535 {
		errs = append(errs, "hub.port must be between 1 and 65535")
	}
	switch c.Hub.Protocol {
	case "ws", "wss":
	default:
		errs = append(errs, "hub.protocol must be ws or wss")
	}
	if c.Hub.Path == "" {
		errs = append(errs, "hub.path is required")
	}
	if c.Hub.RetryDelay < 1 {
		errs = append(errs, "hub.retry_delay must be at least 1 second")
	}

	if c.Snapserver.Host == "" {
		errs = append(errs, "snapserver.host is required")
	}
	if c.Snapserver.Port < 1 || c.Snapserver.Port > 65535 {
		errs = append(errs, "snapserver.port must be between 1 and 65535")
	}

	if c.Yamaha.PollInterval < 1 {
		errs = append(errs, "yamaha.poll_interval must be at least 1 second")
	}
	if c.Yamaha.MaxConcurrent < 1 {
		errs = append(errs, "yamaha.max_concurrent must be at least 1")
	}
	for i, src := range c.Yamaha.Sources {
		if src.Source == "" {
			errs = append(errs, fmt.Sprintf("yamaha.sources[%d].source is required", i))
		}
		if src.URL == "" {
			errs = append(errs, fmt.Sprintf("yamaha.sources[%d].url is required", i))
		}
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// HubURL returns the full back-channel URL for the broadcast hub,
// e.g. "ws://localhost:5001/snappy/hub".
func (c *Config) HubURL() string {
	return fmt.Sprintf("%s://%s:%d/%s/hub", c.Hub.Protocol, c.Hub.Target, c.Hub.Port, c.Hub.Path)
}

// GetPollInterval returns the Yamaha poll interval as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Yamaha.PollInterval) * time.Second
}

// GetHubRetryDelay returns the hub connection retry delay as a Duration.
func (c *Config) GetHubRetryDelay() time.Duration {
	return time.Duration(c.Hub.RetryDelay) * time.Second
}

