// Package memory implements an in-memory store, used by tests and loopback
// benchmarks where disk throughput would dominate the measurement.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"fshuttle/pkg/store"
)

// Store keeps blobs in a map guarded by a RWMutex.
//
// An optional byte-size cap bounds total stored content; writes that would
// exceed it fail rather than evict.
type Store struct {
	mu       sync.RWMutex
	files    map[string][]byte
	used     uint64
	maxBytes uint64
}

// New returns an empty store. maxBytes of zero means unbounded.
func New(maxBytes uint64) *Store {
	return &Store{
		files:    make(map[string][]byte),
		maxBytes: maxBytes,
	}
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) Read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, ok := s.files[name]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%s: %w", name, store.ErrNotFound)
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *Store) Write(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("invalid filename %q", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.used - uint64(len(s.files[name])) + uint64(len(data))
	if s.maxBytes > 0 && next > s.maxBytes {
		return fmt.Errorf("write %s: store size limit exceeded (%d > %d bytes)", name, next, s.maxBytes)
	}

	stored := make([]byte, len(data))
	copy(stored, data)
	s.files[name] = stored
	s.used = next
	return nil
}

func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.files[name]
	return ok, nil
}
