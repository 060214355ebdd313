package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"fshuttle/internal/logger"
	"fshuttle/internal/processor"
	"fshuttle/internal/server"
	"fshuttle/pkg/config"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: ./fshuttle.yaml)")
	port := flag.Int("port", 0, "Override the listening port")
	logLevel := flag.String("log-level", "", "Override log level (DEBUG, INFO, WARN, ERROR)")
	storageRoot := flag.String("storage-root", "", "Override the filesystem storage root")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags take precedence over file and environment.
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *storageRoot != "" {
		cfg.Storage.Type = "filesystem"
		if cfg.Storage.Filesystem == nil {
			cfg.Storage.Filesystem = map[string]any{}
		}
		cfg.Storage.Filesystem["root"] = *storageRoot
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.SetLevel(cfg.Logging.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := config.CreateStore(ctx, &cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to create store: %v", err)
	}

	exec, err := config.CreateExecutor(&cfg.Processor)
	if err != nil {
		log.Fatalf("Failed to create executor: %v", err)
	}
	defer exec.Close()

	stager, err := config.CreateStager(&cfg.Processor)
	if err != nil {
		log.Fatalf("Failed to create stager: %v", err)
	}

	srv := server.New(server.Config{
		BindAddress:     cfg.Server.BindAddress,
		Port:            cfg.Server.Port,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MaxConnections:  cfg.Server.MaxConnections,
		AcceptRate:      cfg.Server.AcceptRate,
		AcceptBurst:     cfg.Server.AcceptBurst,
		MetricsInterval: cfg.Server.MetricsInterval,
	}, processor.New(st, exec), stager)

	logger.Info("Server configuration:")
	logger.Info("  Bind: %s:%d", cfg.Server.BindAddress, cfg.Server.Port)
	logger.Info("  Storage: %s", cfg.Storage.Type)
	logger.Info("  Executor: %s (workers=%d)", cfg.Processor.Executor, cfg.Processor.Workers)
	logger.Info("  Staging: %s", cfg.Processor.Staging)
	logger.Info("  Idle timeout: %v", cfg.Server.IdleTimeout)
	logger.Info("  Shutdown timeout: %v", cfg.Server.ShutdownTimeout)
	if cfg.Server.MaxConnections > 0 {
		logger.Info("  Max connections: %d", cfg.Server.MaxConnections)
	} else {
		logger.Info("  Max connections: unlimited")
	}
	logger.Info("  Metrics interval: %v", cfg.Server.MetricsInterval)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
		cancel()
		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error: %v", err)
			os.Exit(1)
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		if err != nil {
			logger.Error("Server error: %v", err)
			os.Exit(1)
		}
		logger.Info("Server stopped")
	}
}
