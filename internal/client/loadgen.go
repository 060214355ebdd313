package client

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"
)

// Mode selects how the load driver schedules requests.
type Mode string

const (
	// ModePool runs a fixed set of worker goroutines pulling requests
	// from a shared queue.
	ModePool Mode = "pool"

	// ModeSpawn launches one goroutine per request up front.
	ModeSpawn Mode = "spawn"
)

// LoadConfig describes one benchmarking run.
type LoadConfig struct {
	// Operation is upload, download or list.
	Operation string

	// Requests is the total number of operations to issue.
	Requests int

	// Workers is the pool size; only used in ModePool.
	Workers int

	// Mode selects the scheduling strategy.
	Mode Mode

	// DataFile is the local payload file for uploads.
	DataFile string

	// RemoteName is the server-side filename downloads fetch.
	RemoteName string
}

// Summary aggregates a run's results.
type Summary struct {
	Operation string        `yaml:"operation"`
	Mode      string        `yaml:"mode"`
	Workers   int           `yaml:"workers"`
	Requests  int           `yaml:"requests"`
	Succeeded int           `yaml:"succeeded"`
	Failed    int           `yaml:"failed"`
	Elapsed   time.Duration `yaml:"elapsed"`
	Bytes     int64         `yaml:"bytes"`

	MinLatency  time.Duration `yaml:"min_latency"`
	MaxLatency  time.Duration `yaml:"max_latency"`
	MeanLatency time.Duration `yaml:"mean_latency"`

	// AggregateMBps is total payload bytes over wall time.
	AggregateMBps float64 `yaml:"aggregate_mbps"`

	// Errors holds one message per failed request, capped at ten.
	Errors []string `yaml:"errors,omitempty"`
}

// Driver fans requests out to an issuer and aggregates the results.
type Driver struct {
	issuer *Issuer
}

// NewDriver returns a driver issuing operations through issuer.
func NewDriver(issuer *Issuer) *Driver {
	return &Driver{issuer: issuer}
}

// Run executes the configured load and returns the aggregated summary.
// Individual request failures are counted, not returned; only a malformed
// configuration is an error.
func (d *Driver) Run(ctx context.Context, cfg LoadConfig) (Summary, error) {
	if cfg.Requests < 1 {
		return Summary{}, fmt.Errorf("requests must be at least 1")
	}
	switch cfg.Operation {
	case "upload", "download", "list":
	default:
		return Summary{}, fmt.Errorf("unknown operation: %q", cfg.Operation)
	}
	if cfg.Operation == "upload" && cfg.DataFile == "" {
		return Summary{}, fmt.Errorf("upload requires a data file")
	}
	if cfg.Operation == "download" && cfg.RemoteName == "" {
		return Summary{}, fmt.Errorf("download requires a remote name")
	}

	results := make([]Result, cfg.Requests)
	start := time.Now()

	switch cfg.Mode {
	case ModeSpawn:
		var wg sync.WaitGroup
		for i := 0; i < cfg.Requests; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = d.issue(ctx, cfg, i)
			}(i)
		}
		wg.Wait()
	case ModePool:
		workers := cfg.Workers
		if workers < 1 {
			workers = 1
		}
		jobs := make(chan int)
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range jobs {
					results[i] = d.issue(ctx, cfg, i)
				}
			}()
		}
		for i := 0; i < cfg.Requests; i++ {
			jobs <- i
		}
		close(jobs)
		wg.Wait()
	default:
		return Summary{}, fmt.Errorf("unknown mode: %q", cfg.Mode)
	}

	return summarize(cfg, results, time.Since(start)), nil
}

func (d *Driver) issue(ctx context.Context, cfg LoadConfig, i int) Result {
	switch cfg.Operation {
	case "upload":
		// Distinct remote names so concurrent uploads never collide.
		remote := fmt.Sprintf("%d_%s", i, filepath.Base(cfg.DataFile))
		return d.issuer.Upload(ctx, remote, cfg.DataFile)
	case "download":
		return d.issuer.Download(ctx, cfg.RemoteName, io.Discard)
	default:
		_, res := d.issuer.List(ctx)
		return res
	}
}

func summarize(cfg LoadConfig, results []Result, elapsed time.Duration) Summary {
	s := Summary{
		Operation: cfg.Operation,
		Mode:      string(cfg.Mode),
		Workers:   cfg.Workers,
		Requests:  len(results),
		Elapsed:   elapsed,
	}

	var totalLatency time.Duration
	for _, r := range results {
		if !r.OK() {
			s.Failed++
			if len(s.Errors) < 10 {
				s.Errors = append(s.Errors, r.Err.Error())
			}
			continue
		}
		s.Succeeded++
		s.Bytes += r.Bytes
		totalLatency += r.Duration
		if s.MinLatency == 0 || r.Duration < s.MinLatency {
			s.MinLatency = r.Duration
		}
		if r.Duration > s.MaxLatency {
			s.MaxLatency = r.Duration
		}
	}

	if s.Succeeded > 0 {
		s.MeanLatency = totalLatency / time.Duration(s.Succeeded)
	}
	if elapsed > 0 {
		s.AggregateMBps = float64(s.Bytes) / (1 << 20) / elapsed.Seconds()
	}
	return s
}
