// Package processor executes LIST, STORE and RETRIEVE against a storage
// backend, isolated from socket I/O. Operation failures never escape as
// errors: they are converted to the textual payloads the protocol defines,
// so the connection handler can send whatever comes back. Calls run on a
// pluggable Executor; the caller blocks for the result either way.
package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fshuttle/internal/wire"
	"fshuttle/pkg/store"
)

// Result is the outcome of one processor call.
type Result struct {
	// Payload is sent verbatim to the peer.
	Payload []byte

	// OK selects which operation counter the connection increments.
	OK bool
}

func success(payload []byte) Result { return Result{Payload: payload, OK: true} }
func failure(payload []byte) Result { return Result{Payload: payload, OK: false} }

// Processor runs the three storage operations.
type Processor struct {
	store store.Store
	exec  Executor
}

// New returns a Processor backed by the given store and executor.
func New(st store.Store, exec Executor) *Processor {
	return &Processor{store: st, exec: exec}
}

// List returns the newline-joined stored filenames, or the empty marker.
func (p *Processor) List(ctx context.Context) (Result, error) {
	return p.exec.Do(ctx, func() Result {
		names, err := p.store.List(ctx)
		if err != nil {
			return failure([]byte(fmt.Sprintf("Storage error: %v", err)))
		}
		if len(names) == 0 {
			return success([]byte(wire.MarkerEmpty))
		}
		return success([]byte(strings.Join(names, "\n")))
	})
}

// Store decodes a staged upload payload and persists it under filename.
// The staged payload is consumed; the caller remains responsible for
// discarding it.
func (p *Processor) Store(ctx context.Context, filename string, staged Staged) (Result, error) {
	return p.exec.Do(ctx, func() Result {
		encoded, err := staged.Bytes()
		if err != nil {
			return failure([]byte(fmt.Sprintf("Storage error: %v", err)))
		}

		data, err := wire.Decode(encoded)
		if err != nil {
			return failure([]byte(fmt.Sprintf("Storage error: %v", err)))
		}

		if err := p.store.Write(ctx, filename, data); err != nil {
			return failure([]byte(fmt.Sprintf("Storage error: %v", err)))
		}

		return success([]byte(wire.MarkerStored))
	})
}

// Retrieve returns the whole named file encoded for the wire with the
// sentinel appended, or the unavailable marker if the file does not exist.
func (p *Processor) Retrieve(ctx context.Context, filename string) (Result, error) {
	return p.exec.Do(ctx, func() Result {
		data, err := p.store.Read(ctx, filename)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return failure([]byte(wire.MarkerUnavailable))
			}
			return failure([]byte(fmt.Sprintf("Retrieval error: %v", err)))
		}

		payload := wire.Encode(data)
		return success(append(payload, []byte(wire.Sentinel)...))
	})
}
