package config

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFilesystemStore(t *testing.T) {
	root := filepath.Join(t.TempDir(), "storage")
	st, err := CreateStore(context.Background(), &StorageConfig{
		Type:       "filesystem",
		Filesystem: map[string]any{"root": root},
	})
	require.NoError(t, err)

	require.NoError(t, st.Write(context.Background(), "probe", []byte("x")))
	names, err := st.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"probe"}, names)
}

func TestCreateMemoryStore(t *testing.T) {
	st, err := CreateStore(context.Background(), &StorageConfig{
		Type:   "memory",
		Memory: map[string]any{"max_bytes": 1024},
	})
	require.NoError(t, err)

	require.NoError(t, st.Write(context.Background(), "probe", []byte("x")))
}

func TestCreateStoreUnknownType(t *testing.T) {
	_, err := CreateStore(context.Background(), &StorageConfig{Type: "tape"})
	assert.Error(t, err)
}

func TestCreateS3StoreRequiresBucketAndRegion(t *testing.T) {
	_, err := CreateStore(context.Background(), &StorageConfig{
		Type: "s3",
		S3:   map[string]any{"region": "us-east-1"},
	})
	assert.ErrorContains(t, err, "bucket is required")

	_, err = CreateStore(context.Background(), &StorageConfig{
		Type: "s3",
		S3:   map[string]any{"bucket": "b"},
	})
	assert.ErrorContains(t, err, "region is required")
}

func TestCreateExecutorAndStager(t *testing.T) {
	exec, err := CreateExecutor(&ProcessorConfig{Executor: "inline"})
	require.NoError(t, err)
	exec.Close()

	exec, err = CreateExecutor(&ProcessorConfig{Executor: "pool", Workers: 2, QueueSize: 4})
	require.NoError(t, err)
	exec.Close()

	_, err = CreateExecutor(&ProcessorConfig{Executor: "fibers"})
	assert.Error(t, err)

	_, err = CreateStager(&ProcessorConfig{Staging: "memory"})
	require.NoError(t, err)

	_, err = CreateStager(&ProcessorConfig{Staging: "disk", StagingDir: t.TempDir()})
	require.NoError(t, err)

	_, err = CreateStager(&ProcessorConfig{Staging: "tape"})
	assert.Error(t, err)
}
