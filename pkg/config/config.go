// Package config loads, defaults, and validates the fshuttle configuration,
// and provides factories that turn configuration sections into live
// components (stores, stagers, executors).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete fshuttle server configuration.
//
// Sources, in order of precedence:
//  1. Environment variables (FSHUTTLE_*)
//  2. Configuration file (YAML)
//  3. Default values
//
// Store configuration follows a type-plus-sections pattern: the Type field
// selects the implementation and only the matching section is decoded.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains the listener and lifecycle settings.
	Server ServerConfig `mapstructure:"server"`

	// Processor controls command execution and upload staging.
	Processor ProcessorConfig `mapstructure:"processor"`

	// Storage selects and configures the file store backend.
	Storage StorageConfig `mapstructure:"storage"`

	// Client configures the benchmarking client.
	Client ClientConfig `mapstructure:"client"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level: DEBUG, INFO, WARN or ERROR.
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
}

// ServerConfig contains the listener and lifecycle settings.
type ServerConfig struct {
	// BindAddress is the address to listen on.
	BindAddress string `mapstructure:"bind_address" validate:"required"`

	// Port is the TCP port to listen on.
	Port int `mapstructure:"port" validate:"required,gte=1,lte=65535"`

	// IdleTimeout bounds each socket read/write. Zero disables it.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"gte=0"`

	// ShutdownTimeout is the maximum wait for connections to drain.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`

	// MaxConnections caps concurrent connections. Zero means unlimited.
	MaxConnections int `mapstructure:"max_connections" validate:"gte=0"`

	// AcceptRate throttles accepts per second; zero disables throttling.
	// AcceptBurst is the token bucket capacity.
	AcceptRate  uint `mapstructure:"accept_rate"`
	AcceptBurst uint `mapstructure:"accept_burst"`

	// MetricsInterval is the period of the stats log line. Zero disables it.
	MetricsInterval time.Duration `mapstructure:"metrics_interval" validate:"gte=0"`
}

// ProcessorConfig controls command execution and upload staging.
type ProcessorConfig struct {
	// Executor selects how commands run: "inline" runs on the connection
	// goroutine, "pool" dispatches to a fixed worker pool.
	Executor string `mapstructure:"executor" validate:"required,oneof=inline pool"`

	// Workers is the pool size; only used when Executor is "pool".
	Workers int `mapstructure:"workers" validate:"gte=0"`

	// QueueSize is the pool's pending-task buffer.
	QueueSize int `mapstructure:"queue_size" validate:"gte=0"`

	// Staging selects where uploads accumulate before decoding:
	// "memory" buffers in RAM, "disk" spools to StagingDir.
	Staging string `mapstructure:"staging" validate:"required,oneof=memory disk"`

	// StagingDir is the spool directory; only used when Staging is "disk".
	StagingDir string `mapstructure:"staging_dir"`
}

// ClientConfig configures the benchmarking client.
type ClientConfig struct {
	// ServerAddress is the host:port the client connects to.
	ServerAddress string `mapstructure:"server_address" validate:"required"`

	// DataDir holds the generated upload payload files.
	DataDir string `mapstructure:"data_dir" validate:"required"`

	// ReportPath, when set, receives the run summary as YAML.
	ReportPath string `mapstructure:"report_path"`

	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration `mapstructure:"dial_timeout" validate:"gte=0"`

	// IOTimeout bounds one whole operation on the socket. Zero disables it.
	IOTimeout time.Duration `mapstructure:"io_timeout" validate:"gte=0"`
}

// StorageConfig selects and configures the file store backend.
type StorageConfig struct {
	// Type selects the store implementation: filesystem, memory or s3.
	Type string `mapstructure:"type" validate:"required,oneof=filesystem memory s3"`

	// Filesystem is decoded only when Type is "filesystem".
	Filesystem map[string]any `mapstructure:"filesystem"`

	// Memory is decoded only when Type is "memory".
	Memory map[string]any `mapstructure:"memory"`

	// S3 is decoded only when Type is "s3".
	S3 map[string]any `mapstructure:"s3"`
}

// Load reads configuration from file, environment, and defaults.
// An empty configPath falls back to the default search locations; a missing
// file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper wires environment variables and the config file search path.
// Environment variables use the FSHUTTLE_ prefix with underscores, e.g.
// FSHUTTLE_SERVER_PORT=9000.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("FSHUTTLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("fshuttle")
		v.SetConfigType("yaml")
	}
}

// getConfigDir returns $XDG_CONFIG_HOME/fshuttle, falling back to
// ~/.config/fshuttle, or the current directory when neither resolves.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "fshuttle")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "fshuttle")
}
