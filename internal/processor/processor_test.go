package processor

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fshuttle/internal/wire"
	"fshuttle/pkg/store/memory"
)

func stageEncoded(t *testing.T, stager Stager, name string, raw []byte) Staged {
	t.Helper()
	staged, err := stager.NewStaged(name)
	require.NoError(t, err)
	_, err = staged.Write(wire.Encode(raw))
	require.NoError(t, err)
	return staged
}

func TestListEmptyMarker(t *testing.T) {
	p := New(memory.New(0), NewInline())

	res, err := p.List(context.Background())
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, wire.MarkerEmpty, string(res.Payload))
}

func TestListJoinsNames(t *testing.T) {
	st := memory.New(0)
	ctx := context.Background()
	require.NoError(t, st.Write(ctx, "b.bin", nil))
	require.NoError(t, st.Write(ctx, "a.bin", nil))

	p := New(st, NewInline())
	res, err := p.List(ctx)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, "a.bin\nb.bin", string(res.Payload))
}

func TestStoreThenRetrieveRoundTrip(t *testing.T) {
	st := memory.New(0)
	p := New(st, NewInline())
	ctx := context.Background()
	raw := []byte{0x01, 0x02, 0xff, 0x00, 0x7f}

	staged := stageEncoded(t, NewMemoryStager(), "blob.bin", raw)
	defer staged.Discard()

	res, err := p.Store(ctx, "blob.bin", staged)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, wire.MarkerStored, string(res.Payload))

	got, err := st.Read(ctx, "blob.bin")
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	// Retrieve must emit whole-file encoding plus the sentinel.
	res, err = p.Retrieve(ctx, "blob.bin")
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, append(wire.Encode(raw), []byte(wire.Sentinel)...), res.Payload)
}

func TestStoreDecodeFailure(t *testing.T) {
	p := New(memory.New(0), NewInline())

	staged, err := NewMemoryStager().NewStaged("f")
	require.NoError(t, err)
	_, err = staged.Write([]byte("!!! not base64 !!!"))
	require.NoError(t, err)
	defer staged.Discard()

	res, err := p.Store(context.Background(), "f", staged)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Contains(t, string(res.Payload), "Storage error")
}

func TestRetrieveMissing(t *testing.T) {
	p := New(memory.New(0), NewInline())

	res, err := p.Retrieve(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, wire.MarkerUnavailable, string(res.Payload))
}

func TestRetrieveEmptyFile(t *testing.T) {
	st := memory.New(0)
	ctx := context.Background()
	require.NoError(t, st.Write(ctx, "empty", []byte{}))

	p := New(st, NewInline())
	res, err := p.Retrieve(ctx, "empty")
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, wire.Sentinel, string(res.Payload))
}

func TestDiskStagerRoundTripAndCleanup(t *testing.T) {
	dir := t.TempDir()
	stager, err := NewDiskStager(dir)
	require.NoError(t, err)

	staged := stageEncoded(t, stager, "big.bin", []byte("spooled to disk"))

	p := New(memory.New(0), NewInline())
	res, err := p.Store(context.Background(), "big.bin", staged)
	require.NoError(t, err)
	assert.True(t, res.OK)

	staged.Discard()

	// The staging file must be gone after discard.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
