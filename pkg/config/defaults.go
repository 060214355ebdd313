package config

import (
	"fmt"
	"time"

	"fshuttle/internal/wire"
)

// Defaults applied by ApplyDefaults when the corresponding value is unset.
const (
	DefaultLogLevel = "INFO"

	DefaultBindAddress     = "0.0.0.0"
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMetricsInterval = 10 * time.Second

	DefaultExecutor  = "pool"
	DefaultWorkers   = 8
	DefaultQueueSize = 64
	DefaultStaging   = "memory"

	DefaultStorageType = "filesystem"
	DefaultStorageRoot = "server_storage"

	DefaultClientDataDir     = "client_data"
	DefaultClientDialTimeout = 5 * time.Second
	DefaultClientIOTimeout   = 5 * time.Minute
)

// ApplyDefaults fills zero-valued fields with defaults. Values already set
// from file or environment are left alone.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}

	if cfg.Server.BindAddress == "" {
		cfg.Server.BindAddress = DefaultBindAddress
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = wire.DefaultPort
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MetricsInterval == 0 {
		cfg.Server.MetricsInterval = DefaultMetricsInterval
	}

	if cfg.Processor.Executor == "" {
		cfg.Processor.Executor = DefaultExecutor
	}
	if cfg.Processor.Workers == 0 {
		cfg.Processor.Workers = DefaultWorkers
	}
	if cfg.Processor.QueueSize == 0 {
		cfg.Processor.QueueSize = DefaultQueueSize
	}
	if cfg.Processor.Staging == "" {
		cfg.Processor.Staging = DefaultStaging
	}

	if cfg.Client.ServerAddress == "" {
		cfg.Client.ServerAddress = fmt.Sprintf("127.0.0.1:%d", wire.DefaultPort)
	}
	if cfg.Client.DataDir == "" {
		cfg.Client.DataDir = DefaultClientDataDir
	}
	if cfg.Client.DialTimeout == 0 {
		cfg.Client.DialTimeout = DefaultClientDialTimeout
	}
	if cfg.Client.IOTimeout == 0 {
		cfg.Client.IOTimeout = DefaultClientIOTimeout
	}

	if cfg.Storage.Type == "" {
		cfg.Storage.Type = DefaultStorageType
	}
	if cfg.Storage.Type == "filesystem" {
		if cfg.Storage.Filesystem == nil {
			cfg.Storage.Filesystem = map[string]any{}
		}
		if _, ok := cfg.Storage.Filesystem["root"]; !ok {
			cfg.Storage.Filesystem["root"] = DefaultStorageRoot
		}
	}
}
