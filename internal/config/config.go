// Package config provides configuration management for Foundry.
//
// Configuration is loaded in the following order (later sources override
// earlier ones):
//  1. Default values (hardcoded)
//  2. Configuration files (./config.yaml, ~/.foundry/config.yaml, /etc/foundry/config.yaml)
//  3. .env files
//  4. Environment variables (FD_ prefix)
//
// Environment variables use the FD_ prefix and underscores for nested keys:
//   - FD_SERVER_ID=host-01
//   - FD_CONTROLLER_ENDPOINTS=http://controller:8080
//   - FD_STATE_DRIVER=bolt
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// Config is the root configuration structure for Foundry.
type Config struct {
	// Server identifies this host and controls startup behavior
	Server ServerConfig `mapstructure:"server"`

	// Controller contains control-plane connection settings
	Controller ControllerConfig `mapstructure:"controller"`

	// State contains server-state persistence settings
	State StateConfig `mapstructure:"state"`

	// API contains the operational HTTP endpoint settings
	API APIConfig `mapstructure:"api"`
}

// ServerConfig identifies the host.
type ServerConfig struct {
	// ID is the server id state is keyed by; generated when empty
	ID string `mapstructure:"id"`

	// Name is the human-readable server name (defaults to ID)
	Name string `mapstructure:"name"`

	// Location is the URL this host advertises to controllers
	Location string `mapstructure:"location"`

	// SyncDeployment blocks startup until the controller handshake
	// completes when the controller is initially unreachable
	SyncDeployment bool `mapstructure:"sync_deployment"`

	// Debug enables debug logging
	Debug bool `mapstructure:"debug"`
}

// ControllerConfig contains control-plane connection settings.
type ControllerConfig struct {
	// Endpoints are the controller base URLs, tried in order
	Endpoints []string `mapstructure:"endpoints"`

	// TokenSecret signs the bearer token presented to controllers;
	// empty disables auth
	TokenSecret string `mapstructure:"token_secret"`

	// TokenExpiration is the lifetime of a minted host token
	TokenExpiration time.Duration `mapstructure:"token_expiration"`

	// ConnectInterval is the delay between background reconnect attempts
	ConnectInterval time.Duration `mapstructure:"connect_interval"`

	// RequestTimeout bounds each handshake HTTP call
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// StateConfig contains server-state persistence settings.
type StateConfig struct {
	// Driver selects the repository backend: file or bolt
	Driver string `mapstructure:"driver"`

	// Path is the state directory (file) or database file (bolt)
	Path string `mapstructure:"path"`
}

// APIConfig contains the operational HTTP endpoint settings.
type APIConfig struct {
	// Host is the bind address
	Host string `mapstructure:"host"`

	// Port is the listen port
	Port int `mapstructure:"port"`

	// ShutdownTimeout is the maximum duration for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

var cfg *Config

// Load reads configuration from a file and environment variables. If cfgFile
// is empty it searches the standard locations.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.foundry")
		v.AddConfigPath("/etc/foundry")
	}

	if err := v.ReadInConfig(); err != nil {
		if cfgFile != "" {
			if !isFileNotFoundError(err) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		} else {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.MergeInConfig() // Ignore error if .env file doesn't exist

	v.SetEnvPrefix("FD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg = &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if cfg.Server.ID == "" {
		cfg.Server.ID = "foundry-" + uuid.NewString()[:8]
	}
	if cfg.Server.Name == "" {
		cfg.Server.Name = cfg.Server.ID
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.id", "")
	v.SetDefault("server.name", "")
	v.SetDefault("server.location", "http://localhost:8230/foundry/services/rest/server")
	v.SetDefault("server.sync_deployment", false)
	v.SetDefault("server.debug", false)

	v.SetDefault("controller.endpoints", []string{})
	v.SetDefault("controller.token_secret", "")
	v.SetDefault("controller.token_expiration", "24h")
	v.SetDefault("controller.connect_interval", "10s")
	v.SetDefault("controller.request_timeout", "5s")

	v.SetDefault("state.driver", "file")
	v.SetDefault("state.path", "./state")

	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8230)
	v.SetDefault("api.shutdown_timeout", "10s")
}

func validate(cfg *Config) error {
	if cfg.State.Driver != "file" && cfg.State.Driver != "bolt" {
		return fmt.Errorf("unknown state driver: %s", cfg.State.Driver)
	}
	if cfg.State.Path == "" {
		return fmt.Errorf("state path is required")
	}
	if cfg.API.Port < 1 || cfg.API.Port > 65535 {
		return fmt.Errorf("invalid api port: %d", cfg.API.Port)
	}
	if cfg.Controller.ConnectInterval <= 0 {
		return fmt.Errorf("controller connect interval must be positive")
	}
	return nil
}

func Get() *Config {
	return cfg
}

// isFileNotFoundError checks if an error is a file not found error.
func isFileNotFoundError(err error) bool {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return errors.Is(pathErr, os.ErrNotExist)
	}
	return false
}
