package config

import "testing"

func TestValidateDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.RconPassword = "secret"

	result := Validate(cfg)
	if !result.IsValid() {
		t.Fatalf("default config should validate, errors: %v", result.Errors)
	}
	// Auth is disabled out of the box, which must at least warn.
	if len(result.Warnings) == 0 {
		t.Fatal("expected a warning about disabled API auth")
	}
}

func TestValidateMissingPassword(t *testing.T) {
	cfg := DefaultConfig()

	result := Validate(cfg)
	if result.IsValid() {
		t.Fatal("config without password or properties path should not validate")
	}
}

func TestValidateBadPorts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.RconPassword = "secret"
	cfg.Server.RconPort = 0
	cfg.API.Port = 99999

	result := Validate(cfg)
	if len(result.Errors) != 2 {
		t.Fatalf("expected 2 port errors, got %v", result.Errors)
	}
}

func TestValidateAPIAuthRequiresToken(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.RconPassword = "secret"
	cfg.API.AuthDisabled = false
	cfg.API.BearerToken = ""

	result := Validate(cfg)
	if result.IsValid() {
		t.Fatal("API auth without a bearer token should not validate")
	}
}

func TestValidateMQTTEnabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.RconPassword = "secret"
	cfg.MQTT.Enabled = true
	cfg.MQTT.BrokerURL = ""

	result := Validate(cfg)
	if result.IsValid() {
		t.Fatal("MQTT without a broker URL should not validate")
	}
}

func TestValidateHistoryRetention(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.RconPassword = "secret"
	cfg.History.RetentionDays = 0

	result := Validate(cfg)
	if result.IsValid() {
		t.Fatal("history retention of 0 days should not validate")
	}
}
