package wire

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkReader yields at most size bytes per Read so tests can force a
// sentinel to straddle read boundaries.
type chunkReader struct {
	data []byte
	size int
	pos  int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := r.size
	if n > len(p) {
		n = len(p)
	}
	if rem := len(r.data) - r.pos; n > rem {
		n = rem
	}
	copy(p, r.data[r.pos:r.pos+n])
	r.pos += n
	return n, nil
}

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		command  Command
		filename string
		wantErr  bool
	}{
		{name: "list", line: "LIST", command: CmdList},
		{name: "list lowercase", line: "list\n", command: CmdList},
		{name: "upload", line: "UPLOAD report.bin", command: CmdUpload, filename: "report.bin"},
		{name: "download", line: "DOWNLOAD 10mb.bin\r\n", command: CmdDownload, filename: "10mb.bin"},
		{name: "upload without filename", line: "UPLOAD", command: CmdUpload},
		{name: "extra whitespace", line: "  DOWNLOAD   a.txt  ", command: CmdDownload, filename: "a.txt"},
		{name: "unknown command", line: "PING", wantErr: true},
		{name: "empty line", line: "", wantErr: true},
		{name: "blank line", line: "   \n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseRequest(tt.line)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.command, req.Command)
			assert.Equal(t, tt.filename, req.Filename)
		})
	}
}

func TestNeedsFilename(t *testing.T) {
	assert.False(t, CmdList.NeedsFilename())
	assert.True(t, CmdUpload.NeedsFilename())
	assert.True(t, CmdDownload.NeedsFilename())
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: []byte{}},
		{name: "one byte", data: []byte{0x00}},
		{name: "text", data: []byte("hello fshuttle")},
		{name: "binary", data: []byte{0xff, 0xfe, 0x00, 0x01, 0x80, 0x7f}},
		{name: "contains sentinel text", data: []byte("prefix__EOF__suffix")},
		{name: "large", data: bytes.Repeat([]byte{0xab, 0xcd, 0xef}, 100000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := Encode(tt.data)
			decoded, err := Decode(encoded)
			require.NoError(t, err)
			assert.Equal(t, tt.data, decoded)

			// The encoded form must never contain the sentinel.
			assert.NotContains(t, string(encoded), Sentinel)
		})
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("not base64 !!!"))
	require.Error(t, err)
}

// Chunked streaming through NewEncoder must be byte-identical to whole-input
// encoding, whatever chunk sizes the sender picks.
func TestStreamingEncoderMatchesWholeEncoding(t *testing.T) {
	data := bytes.Repeat([]byte("payload-1234567"), 4096) // not a multiple of 3

	for _, chunk := range []int{1, 2, 3, 7, 1000, len(data)} {
		var buf bytes.Buffer
		enc := NewEncoder(&buf)
		for off := 0; off < len(data); off += chunk {
			end := off + chunk
			if end > len(data) {
				end = len(data)
			}
			_, err := enc.Write(data[off:end])
			require.NoError(t, err)
		}
		require.NoError(t, enc.Close())

		assert.Equal(t, Encode(data), buf.Bytes(), "chunk size %d", chunk)
	}
}

func TestReadUntilSentinel(t *testing.T) {
	payload := Encode(bytes.Repeat([]byte{0x42}, 5000))
	stream := append(append([]byte{}, payload...), []byte(Sentinel)...)

	t.Run("single read", func(t *testing.T) {
		got, err := ReadUntilSentinel(bytes.NewReader(stream), len(stream))
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})

	// The sentinel must be detected even when every read boundary splits it.
	t.Run("straddling reads", func(t *testing.T) {
		for _, size := range []int{1, 2, 3, 5, len(Sentinel) - 1, len(Sentinel) + 1, 4093} {
			got, err := ReadUntilSentinel(&chunkReader{data: stream, size: size}, size)
			require.NoError(t, err, "read size %d", size)
			assert.Equal(t, payload, got, "read size %d", size)
		}
	})

	t.Run("empty payload", func(t *testing.T) {
		got, err := ReadUntilSentinel(bytes.NewReader([]byte(Sentinel)), 4)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("trailing bytes after sentinel ignored", func(t *testing.T) {
		got, err := ReadUntilSentinel(bytes.NewReader(append(append([]byte("abcd"), []byte(Sentinel)...), "xyz"...)), 3)
		require.NoError(t, err)
		assert.Equal(t, []byte("abcd"), got)
	})

	t.Run("eof without sentinel", func(t *testing.T) {
		got, err := ReadUntilSentinel(bytes.NewReader([]byte("File unavailable")), 4)
		require.ErrorIs(t, err, io.ErrUnexpectedEOF)
		assert.Equal(t, []byte("File unavailable"), got)
	})
}

func TestCopyUntilSentinel(t *testing.T) {
	payload := Encode(bytes.Repeat([]byte{0x13, 0x37}, 3000))
	stream := append(append([]byte{}, payload...), []byte(Sentinel)...)

	t.Run("straddling reads", func(t *testing.T) {
		for _, size := range []int{1, 3, len(Sentinel), 512} {
			var dst bytes.Buffer
			n, err := CopyUntilSentinel(&dst, &chunkReader{data: stream, size: size}, size)
			require.NoError(t, err, "read size %d", size)
			assert.Equal(t, int64(len(payload)), n)
			assert.Equal(t, payload, dst.Bytes(), "read size %d", size)
		}
	})

	t.Run("partial sentinel at eof is flushed", func(t *testing.T) {
		var dst bytes.Buffer
		_, err := CopyUntilSentinel(&dst, bytes.NewReader([]byte("data__EOF")), 4)
		require.ErrorIs(t, err, io.ErrUnexpectedEOF)
		assert.Equal(t, []byte("data__EOF"), dst.Bytes())
	})

	t.Run("sentinel only", func(t *testing.T) {
		var dst bytes.Buffer
		n, err := CopyUntilSentinel(&dst, bytes.NewReader([]byte(Sentinel)), 2)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Empty(t, dst.Bytes())
	})
}
