// Package wire implements the fshuttle transfer protocol: a newline-terminated
// ASCII command line followed by a base64-encoded payload delimited by a fixed
// sentinel token.
//
// The sentinel contains '_', a byte that can never appear in standard base64
// output, so a correctly encoded payload cannot collide with it. The framing
// is kept sentinel-delimited for compatibility with existing peers; a
// length-prefixed frame would remove the straddling hazard and is the
// recommended evolution for a protocol revision.
package wire

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

const (
	// Sentinel marks end-of-stream after the last encoded chunk.
	Sentinel = "__EOF__"

	// Proceed is sent by the server to authorize an upload payload.
	Proceed = "PROCEED"

	// DefaultPort is the TCP port the server binds by default.
	DefaultPort = 8995

	// ChunkSize is the transfer unit used by both peers (1MiB).
	ChunkSize = 1 << 20

	// MaxCommandLine bounds the first line of a connection.
	MaxCommandLine = 4096
)

// Response markers, fixed text payloads of the protocol.
const (
	MarkerEmpty       = "Empty directory"
	MarkerUnavailable = "File unavailable"
	MarkerStored      = "File stored successfully"
	MarkerMissingArg  = "Missing filename"
	MarkerUnknown     = "Unknown operation"
	MarkerInvalid     = "Invalid request"
)

// Command identifies one of the three protocol operations.
type Command string

const (
	CmdList     Command = "LIST"
	CmdUpload   Command = "UPLOAD"
	CmdDownload Command = "DOWNLOAD"
)

// Request is the parsed first line of a connection. Immutable after parsing.
type Request struct {
	Command  Command
	Filename string
}

// ErrEmptyRequest is returned when the command line is empty or blank.
var ErrEmptyRequest = fmt.Errorf("empty request line")

// ParseRequest parses a command line of the form "COMMAND [filename]".
//
// The command token is case-insensitive. Unknown commands are returned as-is
// with an error so the caller can report them verbatim; a missing filename
// for UPLOAD/DOWNLOAD is the caller's concern (the request still parses).
func ParseRequest(line string) (*Request, error) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return nil, ErrEmptyRequest
	}

	req := &Request{Command: Command(strings.ToUpper(fields[0]))}
	if len(fields) > 1 {
		req.Filename = fields[1]
	}

	switch req.Command {
	case CmdList, CmdUpload, CmdDownload:
		return req, nil
	default:
		return req, fmt.Errorf("unknown command %q", fields[0])
	}
}

// NeedsFilename reports whether the command requires a filename argument.
func (c Command) NeedsFilename() bool {
	return c == CmdUpload || c == CmdDownload
}

// Encode returns the wire representation of raw bytes (standard base64).
func Encode(raw []byte) []byte {
	dst := make([]byte, base64.StdEncoding.EncodedLen(len(raw)))
	base64.StdEncoding.Encode(dst, raw)
	return dst
}

// Decode reverses Encode. Decode(Encode(x)) == x for every byte sequence,
// including the empty one.
func Decode(encoded []byte) ([]byte, error) {
	dst := make([]byte, base64.StdEncoding.DecodedLen(len(encoded)))
	n, err := base64.StdEncoding.Decode(dst, encoded)
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return dst[:n], nil
}

// NewEncoder returns a streaming encoder writing wire bytes to w.
//
// The stream produced by any sequence of Write calls followed by Close is
// byte-identical to Encode over the concatenated input, so senders may chunk
// freely. Close must be called to flush the final quantum; it does not write
// the sentinel.
func NewEncoder(w io.Writer) io.WriteCloser {
	return base64.NewEncoder(base64.StdEncoding, w)
}

// ReadUntilSentinel accumulates bytes from r until the sentinel token is
// observed, and returns everything before it. The scan runs over the
// concatenation of all bytes received so far, so a sentinel straddling two
// reads is detected. readSize controls the per-read buffer and exists so
// tests can force straddling; callers normally pass ChunkSize.
//
// If r reaches EOF before a sentinel is seen, the accumulated bytes are
// returned together with io.ErrUnexpectedEOF: short replies such as error
// markers are sent without a sentinel, and the caller decides how to
// interpret them.
func ReadUntilSentinel(r io.Reader, readSize int) ([]byte, error) {
	if readSize <= 0 {
		readSize = ChunkSize
	}

	var acc []byte
	buf := make([]byte, readSize)
	searchFrom := 0

	for {
		n, err := r.Read(buf)
		if n > 0 {
			acc = append(acc, buf[:n]...)
			if i := bytes.Index(acc[searchFrom:], []byte(Sentinel)); i >= 0 {
				return acc[:searchFrom+i], nil
			}
			// Resume the next scan close to the tail: only the last
			// len(Sentinel)-1 bytes can begin a straddling match.
			if searchFrom = len(acc) - len(Sentinel) + 1; searchFrom < 0 {
				searchFrom = 0
			}
		}
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return acc, err
		}
	}
}

// CopyUntilSentinel streams bytes from r to dst until the sentinel token is
// observed, without retaining the payload in memory. Only an unflushed tail
// of len(Sentinel)-1 bytes is held back between reads so a straddling
// sentinel is still detected. Returns the number of payload bytes written.
//
// EOF before the sentinel yields io.ErrUnexpectedEOF after flushing the tail.
func CopyUntilSentinel(dst io.Writer, r io.Reader, readSize int) (int64, error) {
	if readSize <= 0 {
		readSize = ChunkSize
	}

	sentinel := []byte(Sentinel)
	var written int64
	var tail []byte
	buf := make([]byte, readSize)

	flush := func(p []byte) error {
		if len(p) == 0 {
			return nil
		}
		n, err := dst.Write(p)
		written += int64(n)
		return err
	}

	for {
		n, err := r.Read(buf)
		if n > 0 {
			work := append(tail, buf[:n]...)
			if i := bytes.Index(work, sentinel); i >= 0 {
				err := flush(work[:i])
				return written, err
			}
			keep := len(work) - len(sentinel) + 1
			if keep < 0 {
				keep = 0
			}
			if err := flush(work[:keep]); err != nil {
				return written, err
			}
			tail = append(tail[:0], work[keep:]...)
		}
		if err != nil {
			if flushErr := flush(tail); flushErr != nil {
				return written, flushErr
			}
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return written, err
		}
	}
}
