package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/craftctl-project/craftctl/internal/util"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationResult holds the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// AddError adds a validation error.
func (r *ValidationResult) AddError(field, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

// AddWarning adds a validation warning.
func (r *ValidationResult) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: message})
}

// Validate performs comprehensive validation of the configuration.
func Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{}

	validateServer(&cfg.Server, result)
	validateTimers(&cfg.Timers, result)
	validateAPI(&cfg.API, result)
	validateMQTT(&cfg.MQTT, result)
	validateHistory(&cfg.History, result)

	return result
}

func validateServer(data *ServerConfig, result *ValidationResult) {
	if strings.TrimSpace(data.Host) == "" {
		result.AddError("server.host", "server host is required")
	}

	validatePort(data.RconPort, "server.rcon_port", result)

	if strings.TrimSpace(data.PropertiesPath) != "" {
		if !util.FileExists(data.PropertiesPath) {
			result.AddError("server.properties_path",
				fmt.Sprintf("file does not exist: %s", data.PropertiesPath))
		}
	} else if strings.TrimSpace(data.RconPassword) == "" {
		result.AddError("server.rcon_password",
			"rcon password is required when no server.properties path is set")
	}

	if data.DialTimeoutSec < 0 {
		result.AddError("server.dial_timeout_sec", "dial timeout must not be negative")
	}
	if data.IOTimeoutSec < 0 {
		result.AddError("server.io_timeout_sec", "io timeout must not be negative")
	}
}

func validateTimers(timers *TimerConfig, result *ValidationResult) {
	if timers.StatusInterval > 0 && timers.StatusInterval < 5 {
		result.AddWarning("timers.status_interval_sec",
			"status interval less than 5s may flood the server console")
	}
	if timers.HistoryPruneInterval > 0 && timers.HistoryPruneInterval < 60 {
		result.AddWarning("timers.history_prune_interval_sec",
			"prune interval less than 60s causes needless database churn")
	}
}

func validateAPI(data *APIConfig, result *ValidationResult) {
	if !data.Enabled {
		return
	}

	validatePort(data.Port, "api.port", result)

	if !data.AuthDisabled && strings.TrimSpace(data.BearerToken) == "" {
		result.AddError("api.bearer_token",
			"bearer token is required when API authentication is enabled")
	}
	if data.AuthDisabled {
		result.AddWarning("api.auth_disabled",
			"API authentication is disabled, anyone who can reach the port can control the server")
	}
}

func validateMQTT(data *MQTTConfig, result *ValidationResult) {
	if !data.Enabled {
		return
	}

	if strings.TrimSpace(data.BrokerURL) == "" {
		result.AddError("mqtt.broker_url", "MQTT broker URL is required when enabled")
	}
	if data.Port < 1 || data.Port > 65535 {
		result.AddError("mqtt.port", "invalid MQTT port")
	}
	if data.UseTLS {
		if strings.TrimSpace(data.CertFile) == "" {
			result.AddError("mqtt.cert_file", "TLS certificate file is required when TLS is enabled")
		}
		if strings.TrimSpace(data.KeyFile) == "" {
			result.AddError("mqtt.key_file", "TLS key file is required when TLS is enabled")
		}
	}
}

func validateHistory(data *HistoryConfig, result *ValidationResult) {
	if !data.Enabled {
		return
	}

	if strings.TrimSpace(data.DBPath) == "" {
		result.AddError("history.db_path", "database path is required when history is enabled")
	}
	if data.RetentionDays < 1 {
		result.AddError("history.retention_days", "retention days must be at least 1")
	}
}

func validatePort(port int, field string, result *ValidationResult) {
	if port < 1 || port > 65535 {
		result.AddError(field, fmt.Sprintf("invalid port number: %d (must be 1-65535)", port))
		return
	}
	if port < 1024 {
		result.AddWarning(field,
			fmt.Sprintf("port %d is a privileged port, may require elevated permissions", port))
	}
}

// IsPortAvailable checks if a port is available for binding.
func IsPortAvailable(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}
