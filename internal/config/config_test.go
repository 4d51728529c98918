package config

import (
	"strings"
	"testing"
	"time"
)

// TestLoadDefaults tests that default configuration values are loaded correctly.
func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}

	if !strings.HasPrefix(cfg.Server.ID, "foundry-") {
		t.Errorf("Expected generated server id with 'foundry-' prefix, got '%s'", cfg.Server.ID)
	}
	if cfg.Server.Name != cfg.Server.ID {
		t.Errorf("Expected server name to default to id, got '%s'", cfg.Server.Name)
	}
	if cfg.Server.Location != "http://localhost:8230/foundry/services/rest/server" {
		t.Errorf("Unexpected default location '%s'", cfg.Server.Location)
	}
	if cfg.Server.SyncDeployment != false {
		t.Errorf("Expected default sync_deployment false, got %v", cfg.Server.SyncDeployment)
	}

	if len(cfg.Controller.Endpoints) != 0 {
		t.Errorf("Expected no default controller endpoints, got %v", cfg.Controller.Endpoints)
	}
	if cfg.Controller.TokenExpiration != 24*time.Hour {
		t.Errorf("Expected default token expiration 24h, got %v", cfg.Controller.TokenExpiration)
	}
	if cfg.Controller.ConnectInterval != 10*time.Second {
		t.Errorf("Expected default connect interval 10s, got %v", cfg.Controller.ConnectInterval)
	}
	if cfg.Controller.RequestTimeout != 5*time.Second {
		t.Errorf("Expected default request timeout 5s, got %v", cfg.Controller.RequestTimeout)
	}

	if cfg.State.Driver != "file" {
		t.Errorf("Expected default state driver 'file', got '%s'", cfg.State.Driver)
	}
	if cfg.State.Path != "./state" {
		t.Errorf("Expected default state path './state', got '%s'", cfg.State.Path)
	}

	if cfg.API.Host != "0.0.0.0" {
		t.Errorf("Expected default api host '0.0.0.0', got '%s'", cfg.API.Host)
	}
	if cfg.API.Port != 8230 {
		t.Errorf("Expected default api port 8230, got %d", cfg.API.Port)
	}
	if cfg.API.ShutdownTimeout != 10*time.Second {
		t.Errorf("Expected default shutdown timeout 10s, got %v", cfg.API.ShutdownTimeout)
	}
}

// TestValidation tests the configuration validation logic.
func TestValidation(t *testing.T) {
	valid := func() *Config {
		return &Config{
			State:      StateConfig{Driver: "file", Path: "./state"},
			API:        APIConfig{Port: 8230},
			Controller: ControllerConfig{ConnectInterval: 10 * time.Second},
		}
	}

	tests := []struct {
		name      string
		mutate    func(cfg *Config)
		expectErr string
	}{
		{
			name:   "valid configuration",
			mutate: func(cfg *Config) {},
		},
		{
			name:      "unknown state driver",
			mutate:    func(cfg *Config) { cfg.State.Driver = "couch" },
			expectErr: "unknown state driver",
		},
		{
			name:      "missing state path",
			mutate:    func(cfg *Config) { cfg.State.Path = "" },
			expectErr: "state path is required",
		},
		{
			name:      "invalid port - too low",
			mutate:    func(cfg *Config) { cfg.API.Port = 0 },
			expectErr: "invalid api port",
		},
		{
			name:      "invalid port - too high",
			mutate:    func(cfg *Config) { cfg.API.Port = 70000 },
			expectErr: "invalid api port",
		},
		{
			name:      "non-positive connect interval",
			mutate:    func(cfg *Config) { cfg.Controller.ConnectInterval = 0 },
			expectErr: "connect interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := validate(cfg)
			if tt.expectErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Errorf("Expected error containing '%s', got nil", tt.expectErr)
			} else if !strings.Contains(err.Error(), tt.expectErr) {
				t.Errorf("Expected error containing '%s', got '%s'", tt.expectErr, err.Error())
			}
		})
	}
}

// TestEnvironmentVariableOverride tests that environment variables override config values.
func TestEnvironmentVariableOverride(t *testing.T) {
	t.Setenv("FD_SERVER_ID", "env-host")
	t.Setenv("FD_STATE_DRIVER", "bolt")
	t.Setenv("FD_API_PORT", "9999")

	cfg, err := Load("nonexistent.yaml")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.ID != "env-host" {
		t.Errorf("Expected server id 'env-host' from environment, got '%s'", cfg.Server.ID)
	}
	if cfg.State.Driver != "bolt" {
		t.Errorf("Expected state driver 'bolt' from environment, got '%s'", cfg.State.Driver)
	}
	if cfg.API.Port != 9999 {
		t.Errorf("Expected api port 9999 from environment, got %d", cfg.API.Port)
	}
}

// TestGet tests the global config getter.
func TestGet(t *testing.T) {
	loaded, err := Load("nonexistent.yaml")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	retrieved := Get()
	if retrieved == nil {
		t.Fatal("Get() returned nil")
	}
	if retrieved.Server.ID != loaded.Server.ID {
		t.Errorf("Get() returned a different config instance")
	}
}
