package client

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"fshuttle/internal/processor"
	"fshuttle/internal/server"
	"fshuttle/pkg/store/memory"
)

func startServer(t *testing.T) string {
	t.Helper()

	proc := processor.New(memory.New(0), processor.NewPool(4, 16))
	srv := server.New(server.Config{
		BindAddress: "127.0.0.1",
		Port:        0,
		IdleTimeout: 5 * time.Second,
	}, proc, processor.NewMemoryStager())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	select {
	case <-srv.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("server never became ready")
	}

	t.Cleanup(func() {
		cancel()
		<-done
	})

	return srv.Addr().String()
}

func makeDataFile(t *testing.T, size int64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payload.bin")
	require.NoError(t, EnsureDataFile(path, size))
	return path
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	addr := startServer(t)
	issuer := NewIssuer(addr, time.Second, 10*time.Second)
	ctx := context.Background()

	path := makeDataFile(t, 256*1024)
	res := issuer.Upload(ctx, "payload.bin", path)
	require.NoError(t, res.Err)
	assert.EqualValues(t, 256*1024, res.Bytes)
	assert.Greater(t, res.ThroughputMBps(), 0.0)

	want, err := os.ReadFile(path)
	require.NoError(t, err)

	var got bytes.Buffer
	res = issuer.Download(ctx, "payload.bin", &got)
	require.NoError(t, res.Err)
	assert.EqualValues(t, 256*1024, res.Bytes)
	assert.Equal(t, want, got.Bytes())
}

func TestListReflectsUploads(t *testing.T) {
	addr := startServer(t)
	issuer := NewIssuer(addr, time.Second, 10*time.Second)
	ctx := context.Background()

	names, res := issuer.List(ctx)
	require.NoError(t, res.Err)
	assert.Empty(t, names)

	path := makeDataFile(t, 1024)
	require.NoError(t, issuer.Upload(ctx, "one.bin", path).Err)

	names, res = issuer.List(ctx)
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"one.bin"}, names)
}

func TestDownloadMissingReportsServerMessage(t *testing.T) {
	addr := startServer(t)
	issuer := NewIssuer(addr, time.Second, 10*time.Second)

	res := issuer.Download(context.Background(), "ghost.bin", &bytes.Buffer{})
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "File unavailable")
}

func TestEnsureDataFileIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, EnsureDataFile(path, 4096))

	first, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, first, 4096)

	// Same size: the existing file must be left alone.
	require.NoError(t, EnsureDataFile(path, 4096))
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Different size: regenerated.
	require.NoError(t, EnsureDataFile(path, 8192))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.EqualValues(t, 8192, info.Size())
}

func TestDriverPoolMode(t *testing.T) {
	addr := startServer(t)
	driver := NewDriver(NewIssuer(addr, time.Second, 10*time.Second))
	path := makeDataFile(t, 64*1024)

	summary, err := driver.Run(context.Background(), LoadConfig{
		Operation: "upload",
		Requests:  8,
		Workers:   4,
		Mode:      ModePool,
		DataFile:  path,
	})
	require.NoError(t, err)

	assert.Equal(t, 8, summary.Requests)
	assert.Equal(t, 8, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.EqualValues(t, 8*64*1024, summary.Bytes)
	assert.Greater(t, summary.AggregateMBps, 0.0)
	assert.GreaterOrEqual(t, summary.MaxLatency, summary.MinLatency)
}

func TestDriverSpawnModeCountsFailures(t *testing.T) {
	addr := startServer(t)
	driver := NewDriver(NewIssuer(addr, time.Second, 10*time.Second))

	summary, err := driver.Run(context.Background(), LoadConfig{
		Operation:  "download",
		Requests:   4,
		Mode:       ModeSpawn,
		RemoteName: "ghost.bin",
	})
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Failed)
	assert.Equal(t, 0, summary.Succeeded)
	assert.NotEmpty(t, summary.Errors)
}

func TestDriverRejectsBadConfig(t *testing.T) {
	driver := NewDriver(NewIssuer("127.0.0.1:1", time.Second, time.Second))

	_, err := driver.Run(context.Background(), LoadConfig{Operation: "upload", Requests: 0, Mode: ModePool})
	assert.Error(t, err)

	_, err = driver.Run(context.Background(), LoadConfig{Operation: "rename", Requests: 1, Mode: ModePool})
	assert.Error(t, err)

	_, err = driver.Run(context.Background(), LoadConfig{Operation: "upload", Requests: 1, Mode: ModePool})
	assert.Error(t, err, "upload without data file")

	_, err = driver.Run(context.Background(), LoadConfig{Operation: "list", Requests: 1, Mode: "threads"})
	assert.Error(t, err)
}

func TestRenderAndWriteYAML(t *testing.T) {
	summary := Summary{
		Operation:     "upload",
		Mode:          "pool",
		Workers:       4,
		Requests:      10,
		Succeeded:     9,
		Failed:        1,
		Elapsed:       2 * time.Second,
		Bytes:         90 << 20,
		MinLatency:    100 * time.Millisecond,
		MaxLatency:    900 * time.Millisecond,
		MeanLatency:   400 * time.Millisecond,
		AggregateMBps: 45,
		Errors:        []string{"download failed: File unavailable"},
	}

	var out bytes.Buffer
	require.NoError(t, Render(&out, summary))
	assert.Contains(t, out.String(), "Throughput")
	assert.Contains(t, out.String(), "45.00 MB/s")

	path := filepath.Join(t.TempDir(), "results.yaml")
	require.NoError(t, WriteYAML(path, summary))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var loaded Summary
	require.NoError(t, yaml.Unmarshal(data, &loaded))
	assert.Equal(t, summary.Succeeded, loaded.Succeeded)
	assert.Equal(t, summary.AggregateMBps, loaded.AggregateMBps)
}
