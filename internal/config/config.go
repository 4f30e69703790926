// Package config handles configuration loading, validation, and persistence
// for the Craftctl console manager.
package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"
)

const (
	DefaultConfigDir  = "config"
	DefaultConfigFile = "config.json"
	DefaultRconPort   = 25575
	DefaultAPIPort    = 8080
)

// Config is the root configuration structure for Craftctl.
type Config struct {
	mu   sync.RWMutex
	path string

	Server  ServerConfig  `json:"server"`
	Timers  TimerConfig   `json:"timers"`
	API     APIConfig     `json:"api"`
	MQTT    MQTTConfig    `json:"mqtt"`
	History HistoryConfig `json:"history"`
	Logging LoggingConfig `json:"logging"`
}

// ServerConfig describes how to reach the Minecraft server's remote
// console. Port and password can be set inline or overlaid from the
// server's own server.properties file; the properties file wins when
// properties_path is set.
type ServerConfig struct {
	Host           string `json:"host"`
	RconPort       int    `json:"rcon_port"`
	RconPassword   string `json:"rcon_password"`
	PropertiesPath string `json:"properties_path"`

	// Timeouts are applied around the console protocol, which itself
	// blocks without bound. 0 disables the corresponding deadline.
	DialTimeoutSec int `json:"dial_timeout_sec"`
	IOTimeoutSec   int `json:"io_timeout_sec"`

	// LevelName is informational, shown in status output. Filled from
	// server.properties when available.
	LevelName string `json:"level_name"`
}

// TimerConfig holds background task interval settings.
type TimerConfig struct {
	StatusInterval       int `json:"status_interval_sec"`
	HistoryPruneInterval int `json:"history_prune_interval_sec"`
}

// APIConfig holds REST API settings.
type APIConfig struct {
	Enabled        bool     `json:"enabled"`
	Port           int      `json:"port"`
	BearerToken    string   `json:"bearer_token"`
	AuthDisabled   bool     `json:"auth_disabled"`
	AllowedOrigins []string `json:"allowed_origins"`
}

// MQTTConfig holds MQTT telemetry settings.
type MQTTConfig struct {
	Enabled   bool   `json:"enabled"`
	BrokerURL string `json:"broker_url"`
	Port      int    `json:"port"`
	UseTLS    bool   `json:"use_tls"`
	CertFile  string `json:"cert_file"`
	KeyFile   string `json:"key_file"`
	CAFile    string `json:"ca_file"`
	ClientID  string `json:"client_id"`
}

// HistoryConfig holds the command audit log settings.
type HistoryConfig struct {
	Enabled       bool   `json:"enabled"`
	DBPath        string `json:"db_path"`
	RetentionDays int    `json:"retention_days"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `json:"level"`
	Directory  string `json:"directory"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "127.0.0.1",
			RconPort:       DefaultRconPort,
			DialTimeoutSec: 10,
			LevelName:      "world",
		},
		Timers: TimerConfig{
			StatusInterval:       30,
			HistoryPruneInterval: 3600,
		},
		API: APIConfig{
			Enabled:      true,
			Port:         DefaultAPIPort,
			AuthDisabled: true,
		},
		MQTT: MQTTConfig{
			Enabled: false,
			Port:    8883,
			UseTLS:  true,
		},
		History: HistoryConfig{
			Enabled:       true,
			DBPath:        "config/history.db",
			RetentionDays: 30,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Directory:  "logs",
			MaxSizeMB:  10,
			MaxBackups: 5,
		},
	}
}

// Load reads configuration from a JSON file. A missing file is not an
// error: defaults are written out so the operator has a template to edit.
func Load(configDir string) (*Config, error) {
	configPath := filepath.Join(configDir, DefaultConfigFile)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", configPath).Msg("config file not found, creating default")
			cfg := DefaultConfig()
			cfg.path = configPath
			if saveErr := cfg.Save(); saveErr != nil {
				return nil, fmt.Errorf("failed to save default config: %w", saveErr)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig() // Start with defaults, then overlay
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	cfg.path = configPath
	log.Info().Str("path", configPath).Msg("configuration loaded")

	// Re-save config to persist any new default fields added in code updates.
	// This ensures config.json always reflects the complete set of options.
	if saveErr := cfg.Save(); saveErr != nil {
		log.Warn().Err(saveErr).Msg("failed to re-save config with updated defaults")
	}

	return cfg, nil
}

// ApplyProperties overlays the console endpoint settings from a parsed
// server.properties file, so the tool follows whatever the server
// itself is configured with.
func (c *Config) ApplyProperties(p *Properties) error {
	endpoint, err := p.RconEndpoint()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.Server.RconPort = endpoint.Port
	c.Server.RconPassword = endpoint.Password
	c.Server.LevelName = p.LevelName()
	c.mu.Unlock()

	log.Info().
		Int("rcon_port", endpoint.Port).
		Str("level_name", p.LevelName()).
		Msg("applied server.properties overrides")
	return nil
}

// Save writes the current configuration to disk.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// Ensure config directory exists
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Debug().Str("path", c.path).Msg("configuration saved")
	return nil
}

// GetServer returns a copy of the server configuration.
func (c *Config) GetServer() ServerConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Server
}

// SetServer updates the server configuration.
func (c *Config) SetServer(data ServerConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Server = data
}

// RconAddress returns the host:port the console client should dial.
func (c *Config) RconAddress() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.RconPort))
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.path
}
