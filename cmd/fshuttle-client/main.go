package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"fshuttle/internal/client"
	"fshuttle/internal/logger"
	"fshuttle/pkg/config"
)

func usageError(format string, v ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n\n", v...)
	flag.Usage()
	os.Exit(2)
}

func main() {
	configPath := flag.String("config", "", "Path to config file (default: ./fshuttle.yaml)")
	serverAddr := flag.String("server", "", "Override server address (host:port)")
	logLevel := flag.String("log-level", "", "Override log level (DEBUG, INFO, WARN, ERROR)")

	operation := flag.String("op", "upload", "Operation to benchmark: upload, download or list")
	size := flag.String("size", "10MB", "Payload size class: 10MB, 50MB or 100MB")
	requests := flag.Int("requests", 10, "Total number of requests to issue")
	workers := flag.Int("workers", 4, "Concurrent workers (pool mode)")
	mode := flag.String("mode", "pool", "Scheduling mode: pool or spawn")
	remote := flag.String("remote", "", "Remote filename for downloads (defaults to the seeded payload)")
	report := flag.String("report", "", "Write the run summary as YAML to this path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *serverAddr != "" {
		cfg.Client.ServerAddress = *serverAddr
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *report != "" {
		cfg.Client.ReportPath = *report
	}
	logger.SetLevel(cfg.Logging.Level)

	switch *operation {
	case "upload", "download", "list":
	default:
		usageError("unknown operation %q (expected upload, download or list)", *operation)
	}
	switch client.Mode(*mode) {
	case client.ModePool, client.ModeSpawn:
	default:
		usageError("unknown mode %q (expected pool or spawn)", *mode)
	}
	sizeBytes, ok := client.SizeClasses[*size]
	if !ok {
		usageError("unknown size class %q (expected 10MB, 50MB or 100MB)", *size)
	}
	if *requests < 1 {
		usageError("requests must be at least 1")
	}

	ctx := context.Background()
	issuer := client.NewIssuer(cfg.Client.ServerAddress, cfg.Client.DialTimeout, cfg.Client.IOTimeout)

	loadCfg := client.LoadConfig{
		Operation:  *operation,
		Requests:   *requests,
		Workers:    *workers,
		Mode:       client.Mode(*mode),
		RemoteName: *remote,
	}

	if *operation != "list" {
		if err := os.MkdirAll(cfg.Client.DataDir, 0o755); err != nil {
			log.Fatalf("Failed to create data directory: %v", err)
		}
		dataName := fmt.Sprintf("payload_%s.bin", *size)
		dataPath := filepath.Join(cfg.Client.DataDir, dataName)
		if err := client.EnsureDataFile(dataPath, sizeBytes); err != nil {
			log.Fatalf("Failed to prepare data file: %v", err)
		}
		loadCfg.DataFile = dataPath

		// Downloads need a file on the server; seed one unless the caller
		// pointed at an existing remote name.
		if *operation == "download" && loadCfg.RemoteName == "" {
			logger.Info("seeding %s on the server", dataName)
			if res := issuer.Upload(ctx, dataName, dataPath); res.Err != nil {
				log.Fatalf("Failed to seed download payload: %v", res.Err)
			}
			loadCfg.RemoteName = dataName
		}
	}

	logger.Info("benchmarking %s against %s: %d requests, mode=%s workers=%d",
		*operation, cfg.Client.ServerAddress, *requests, *mode, *workers)

	driver := client.NewDriver(issuer)
	summary, err := driver.Run(ctx, loadCfg)
	if err != nil {
		log.Fatalf("Benchmark failed: %v", err)
	}

	if err := client.Render(os.Stdout, summary); err != nil {
		log.Fatalf("Failed to render summary: %v", err)
	}
	if cfg.Client.ReportPath != "" {
		if err := client.WriteYAML(cfg.Client.ReportPath, summary); err != nil {
			log.Fatalf("Failed to write report: %v", err)
		}
		logger.Info("summary written to %s", cfg.Client.ReportPath)
	}

	if summary.Failed > 0 {
		os.Exit(1)
	}
}
