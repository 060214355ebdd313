// Package store defines the storage backend interface the server executes
// commands against: a flat namespace of named blobs with no metadata beyond
// the filename. Implementations live in the fs, memory and s3 subpackages.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the named file does not exist.
var ErrNotFound = errors.New("file not found")

// Store is a flat-namespace blob store.
//
// List returns the stored filenames in lexical order. Read returns the whole
// content of a named file. Write creates or silently overwrites a named file;
// a Write that returns nil must never leave a partially-written file visible
// under that name. Exists reports whether the name is stored.
//
// Concurrent access to distinct names is safe. Concurrent writes to the same
// name are last-writer-wins with no further guarantee.
type Store interface {
	List(ctx context.Context) ([]string, error)
	Read(ctx context.Context, name string) ([]byte, error)
	Write(ctx context.Context, name string, data []byte) error
	Exists(ctx context.Context, name string) (bool, error)
}
