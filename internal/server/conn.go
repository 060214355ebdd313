package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"fshuttle/internal/logger"
	"fshuttle/internal/wire"
)

// conn owns one accepted connection and drives the per-command sub-protocol.
// Whatever path the connection takes out of here, exactly one operation
// counter is incremented.
type conn struct {
	server *Server
	conn   net.Conn
}

func (c *conn) serve(ctx context.Context) {
	logger.Debug("connection from %s", c.conn.RemoteAddr())

	ok := false
	defer func() {
		if r := recover(); r != nil {
			logger.Error("handler panic from %s: %v", c.conn.RemoteAddr(), r)
			ok = false
		}
		c.server.metrics.RecordOutcome(ok)
		_ = c.conn.Close()
	}()

	ok = c.handle(ctx)
}

// handle runs the protocol state machine and reports whether the command
// completed successfully. Every error category is absorbed here: where the
// socket is still writable a textual response is sent, otherwise the error
// is logged and swallowed.
func (c *conn) handle(ctx context.Context) bool {
	reader := bufio.NewReaderSize(c.conn, 64*1024)

	line, err := c.readCommandLine(reader)
	if err != nil {
		logger.Debug("read command from %s: %v", c.conn.RemoteAddr(), err)
		return false
	}

	req, err := wire.ParseRequest(line)
	if err != nil {
		if errors.Is(err, wire.ErrEmptyRequest) {
			c.send([]byte(wire.MarkerInvalid))
		} else {
			c.send([]byte(wire.MarkerUnknown))
		}
		return false
	}

	if req.Command.NeedsFilename() && req.Filename == "" {
		c.send([]byte(wire.MarkerMissingArg))
		return false
	}

	switch req.Command {
	case wire.CmdList:
		return c.handleList(ctx)
	case wire.CmdUpload:
		return c.handleUpload(ctx, reader, req.Filename)
	case wire.CmdDownload:
		return c.handleDownload(ctx, req.Filename)
	default:
		c.send([]byte(wire.MarkerUnknown))
		return false
	}
}

func (c *conn) handleList(ctx context.Context) bool {
	res, err := c.server.processor.List(ctx)
	if err != nil {
		logger.Debug("list dispatch: %v", err)
		return false
	}
	return c.send(res.Payload) && res.OK
}

func (c *conn) handleUpload(ctx context.Context, reader *bufio.Reader, filename string) bool {
	staged, err := c.server.stager.NewStaged(filename)
	if err != nil {
		c.send([]byte(fmt.Sprintf("Storage error: %v", err)))
		return false
	}
	defer staged.Discard()

	if !c.send([]byte(wire.Proceed + "\n")) {
		return false
	}

	c.extendDeadline()
	n, err := wire.CopyUntilSentinel(staged, deadlineReader{c: c, r: reader}, wire.ChunkSize)
	c.server.metrics.RecordBytesIn(n)
	if err != nil {
		// Peer vanished or stalled mid-transfer; nothing useful can be
		// sent back on a broken stream.
		logger.Debug("upload receive from %s: %v", c.conn.RemoteAddr(), err)
		return false
	}

	res, err := c.server.processor.Store(ctx, filename, staged)
	if err != nil {
		logger.Debug("store dispatch: %v", err)
		return false
	}
	return c.send(res.Payload) && res.OK
}

func (c *conn) handleDownload(ctx context.Context, filename string) bool {
	res, err := c.server.processor.Retrieve(ctx, filename)
	if err != nil {
		logger.Debug("retrieve dispatch: %v", err)
		return false
	}

	if !c.send(res.Payload) {
		return false
	}
	if res.OK {
		c.server.metrics.RecordBytesOut(int64(len(res.Payload)))
	}
	return res.OK
}

// readCommandLine reads the newline-terminated first line, bounded by
// MaxCommandLine.
func (c *conn) readCommandLine(reader *bufio.Reader) (string, error) {
	c.extendDeadline()

	var line []byte
	for {
		b, err := reader.ReadByte()
		if err != nil {
			if err == io.EOF && len(line) > 0 {
				// A peer that closes without the terminator still
				// sent a parseable command.
				return string(line), nil
			}
			return "", err
		}
		if b == '\n' {
			return string(line), nil
		}
		line = append(line, b)
		if len(line) > wire.MaxCommandLine {
			return "", fmt.Errorf("command line exceeds %d bytes", wire.MaxCommandLine)
		}
	}
}

// send writes a payload with the idle deadline applied and reports success.
// Failures are counted by the caller, never raised.
func (c *conn) send(payload []byte) bool {
	c.extendDeadline()
	if _, err := c.conn.Write(payload); err != nil {
		logger.Debug("write to %s: %v", c.conn.RemoteAddr(), err)
		return false
	}
	return true
}

func (c *conn) extendDeadline() {
	if t := c.server.config.IdleTimeout; t > 0 {
		_ = c.conn.SetDeadline(time.Now().Add(t))
	}
}

// deadlineReader pushes the idle deadline forward on every read so a live
// transfer is never killed by the per-operation timeout, while a stalled
// peer still times out.
type deadlineReader struct {
	c *conn
	r io.Reader
}

func (d deadlineReader) Read(p []byte) (int, error) {
	d.c.extendDeadline()
	return d.r.Read(p)
}
