package processor

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Staged accumulates the encoded bytes of an in-flight upload. The handler
// writes chunks as they arrive from the socket; the processor consumes the
// whole payload at commit. Discard is idempotent and must be called on every
// path, including after a successful commit.
type Staged interface {
	Write(p []byte) (int, error)
	Bytes() ([]byte, error)
	Discard()
}

// Stager creates staging areas for uploads.
type Stager interface {
	NewStaged(filename string) (Staged, error)
}

// memoryStager buffers uploads in handler memory.
type memoryStager struct{}

// NewMemoryStager returns a stager that accumulates uploads in memory.
func NewMemoryStager() Stager {
	return memoryStager{}
}

func (memoryStager) NewStaged(string) (Staged, error) {
	return &memoryStaged{}, nil
}

type memoryStaged struct {
	buf bytes.Buffer
}

func (m *memoryStaged) Write(p []byte) (int, error) { return m.buf.Write(p) }
func (m *memoryStaged) Bytes() ([]byte, error)      { return m.buf.Bytes(), nil }
func (m *memoryStaged) Discard()                    { m.buf.Reset() }

// diskStager spools uploads to uniquely-named temporary files in dir, so an
// upload larger than memory never lives in the handler. A crash between
// staging and Discard leaks the file; restarts may want to sweep *.tmp.
type diskStager struct {
	dir string
}

// NewDiskStager creates dir if needed and returns a disk-spooling stager.
func NewDiskStager(dir string) (Stager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create spool dir: %w", err)
	}
	return &diskStager{dir: dir}, nil
}

func (d *diskStager) NewStaged(filename string) (Staged, error) {
	name := fmt.Sprintf("%s_%s.tmp", filepath.Base(filename), uuid.New())
	f, err := os.OpenFile(filepath.Join(d.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("create staging file: %w", err)
	}
	return &diskStaged{file: f, path: f.Name()}, nil
}

type diskStaged struct {
	file *os.File
	path string
}

func (d *diskStaged) Write(p []byte) (int, error) {
	return d.file.Write(p)
}

func (d *diskStaged) Bytes() ([]byte, error) {
	if err := d.file.Close(); err != nil {
		return nil, fmt.Errorf("close staging file: %w", err)
	}
	data, err := os.ReadFile(d.path)
	if err != nil {
		return nil, fmt.Errorf("read staging file: %w", err)
	}
	return data, nil
}

func (d *diskStaged) Discard() {
	_ = d.file.Close()
	_ = os.Remove(d.path)
}
