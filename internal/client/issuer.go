// Package client implements the benchmarking client: a protocol issuer for
// single operations, a load driver that fans requests across workers, and
// reporting of the measured throughput.
package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"fshuttle/internal/wire"
)

// Result captures one operation's outcome and timing.
type Result struct {
	Operation string        `yaml:"operation"`
	Filename  string        `yaml:"filename,omitempty"`
	Bytes     int64         `yaml:"bytes"`
	Duration  time.Duration `yaml:"duration"`
	Err       error         `yaml:"-"`
}

// OK reports whether the operation succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// ThroughputMBps returns the payload rate in MB/s, zero for instantaneous
// or failed operations.
func (r Result) ThroughputMBps() float64 {
	if r.Err != nil || r.Duration <= 0 {
		return 0
	}
	return float64(r.Bytes) / (1 << 20) / r.Duration.Seconds()
}

// Issuer performs single protocol operations against one server address.
// One connection per operation, mirroring the server's one-command
// connection lifetime. Safe for concurrent use.
type Issuer struct {
	addr        string
	dialTimeout time.Duration
	ioTimeout   time.Duration
}

// NewIssuer returns an issuer for addr. Zero timeouts disable the
// corresponding limit.
func NewIssuer(addr string, dialTimeout, ioTimeout time.Duration) *Issuer {
	return &Issuer{addr: addr, dialTimeout: dialTimeout, ioTimeout: ioTimeout}
}

func (i *Issuer) dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: i.dialTimeout}
	c, err := d.DialContext(ctx, "tcp", i.addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", i.addr, err)
	}
	if i.ioTimeout > 0 {
		_ = c.SetDeadline(time.Now().Add(i.ioTimeout))
	}
	return c, nil
}

// List fetches the server's file listing.
func (i *Issuer) List(ctx context.Context) ([]string, Result) {
	res := Result{Operation: "list"}
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	c, err := i.dial(ctx)
	if err != nil {
		res.Err = err
		return nil, res
	}
	defer c.Close()

	if _, err := fmt.Fprintf(c, "%s\n", wire.CmdList); err != nil {
		res.Err = fmt.Errorf("send command: %w", err)
		return nil, res
	}

	reply, err := io.ReadAll(c)
	if err != nil {
		res.Err = fmt.Errorf("read listing: %w", err)
		return nil, res
	}
	res.Bytes = int64(len(reply))

	listing := string(reply)
	if listing == wire.MarkerEmpty || listing == "" {
		return nil, res
	}
	return strings.Split(listing, "\n"), res
}

// Upload sends the file at localPath to the server under remoteName.
// Bytes counts the raw file size, not the encoded stream.
func (i *Issuer) Upload(ctx context.Context, remoteName, localPath string) Result {
	res := Result{Operation: "upload", Filename: remoteName}
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	f, err := os.Open(localPath)
	if err != nil {
		res.Err = fmt.Errorf("open data file: %w", err)
		return res
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		res.Err = fmt.Errorf("stat data file: %w", err)
		return res
	}

	c, err := i.dial(ctx)
	if err != nil {
		res.Err = err
		return res
	}
	defer c.Close()

	if _, err := fmt.Fprintf(c, "%s %s\n", wire.CmdUpload, remoteName); err != nil {
		res.Err = fmt.Errorf("send command: %w", err)
		return res
	}

	reader := bufio.NewReader(c)
	line, err := reader.ReadString('\n')
	if err != nil {
		res.Err = fmt.Errorf("await go-ahead: %w", err)
		return res
	}
	if strings.TrimSuffix(line, "\n") != wire.Proceed {
		res.Err = fmt.Errorf("server refused upload: %s", strings.TrimSpace(line))
		return res
	}

	enc := wire.NewEncoder(c)
	if _, err := io.CopyBuffer(enc, f, make([]byte, wire.ChunkSize)); err != nil {
		res.Err = fmt.Errorf("stream payload: %w", err)
		return res
	}
	if err := enc.Close(); err != nil {
		res.Err = fmt.Errorf("flush payload: %w", err)
		return res
	}
	if _, err := io.WriteString(c, wire.Sentinel); err != nil {
		res.Err = fmt.Errorf("send terminator: %w", err)
		return res
	}

	status, err := io.ReadAll(reader)
	if err != nil {
		res.Err = fmt.Errorf("read status: %w", err)
		return res
	}
	if string(status) != wire.MarkerStored {
		res.Err = fmt.Errorf("upload rejected: %s", strings.TrimSpace(string(status)))
		return res
	}

	res.Bytes = info.Size()
	return res
}

// Download fetches remoteName and writes the decoded payload to dst.
func (i *Issuer) Download(ctx context.Context, remoteName string, dst io.Writer) Result {
	res := Result{Operation: "download", Filename: remoteName}
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	c, err := i.dial(ctx)
	if err != nil {
		res.Err = err
		return res
	}
	defer c.Close()

	if _, err := fmt.Fprintf(c, "%s %s\n", wire.CmdDownload, remoteName); err != nil {
		res.Err = fmt.Errorf("send command: %w", err)
		return res
	}

	encoded, err := wire.ReadUntilSentinel(c, wire.ChunkSize)
	if err == io.ErrUnexpectedEOF {
		// No terminator means the server sent an error message instead of
		// a payload.
		res.Err = fmt.Errorf("download failed: %s", strings.TrimSpace(string(encoded)))
		return res
	}
	if err != nil {
		res.Err = fmt.Errorf("receive payload: %w", err)
		return res
	}

	raw, err := wire.Decode(encoded)
	if err != nil {
		res.Err = err
		return res
	}

	n, err := dst.Write(raw)
	if err != nil {
		res.Err = fmt.Errorf("write payload: %w", err)
		return res
	}

	res.Bytes = int64(n)
	return res
}
