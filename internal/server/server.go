// Package server implements the fshuttle TCP server: an accept loop handing
// each connection to its own handler goroutine, operation counters with a
// periodic reporter, and graceful shutdown. One command is served per
// connection lifetime.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/net/netutil"

	"fshuttle/internal/logger"
	"fshuttle/internal/processor"
	"fshuttle/internal/ratelimiter"
)

// Config holds the server runtime parameters.
type Config struct {
	// BindAddress is the address to bind, e.g. "0.0.0.0".
	BindAddress string

	// Port is the TCP port to listen on.
	Port int

	// IdleTimeout bounds each socket read/write on a connection.
	// Zero means no timeout.
	IdleTimeout time.Duration

	// ShutdownTimeout is the maximum wait for active connections on
	// graceful shutdown.
	ShutdownTimeout time.Duration

	// MaxConnections limits concurrent connections. Zero means unlimited.
	MaxConnections int

	// AcceptRate throttles accepted connections per second (token bucket).
	// Zero disables throttling. AcceptBurst is the bucket capacity.
	AcceptRate  uint
	AcceptBurst uint

	// MetricsInterval is the period of the stats reporter log line.
	// Zero disables periodic reporting.
	MetricsInterval time.Duration
}

// Server accepts connections and serves the transfer protocol.
type Server struct {
	config    Config
	processor *processor.Processor
	stager    processor.Stager
	metrics   *Metrics
	limiter   *ratelimiter.RateLimiter

	listener net.Listener
	ready    chan struct{}

	activeConns  sync.WaitGroup
	shutdown     chan struct{}
	shutdownOnce sync.Once

	shutdownCtx    context.Context
	cancelRequests context.CancelFunc
}

// New returns an unstarted server. proc executes commands; stager provides
// upload staging areas.
func New(config Config, proc *processor.Processor, stager processor.Stager) *Server {
	shutdownCtx, cancelRequests := context.WithCancel(context.Background())

	var limiter *ratelimiter.RateLimiter
	if config.AcceptRate > 0 {
		limiter = ratelimiter.New(config.AcceptRate, config.AcceptBurst)
	}

	return &Server{
		config:         config,
		processor:      proc,
		stager:         stager,
		metrics:        NewMetrics(),
		limiter:        limiter,
		ready:          make(chan struct{}),
		shutdown:       make(chan struct{}),
		shutdownCtx:    shutdownCtx,
		cancelRequests: cancelRequests,
	}
}

// Metrics exposes the server's operation counters.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Ready is closed once the listener is bound; Addr is valid afterwards.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound listener address, or nil before Ready.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve binds the port and accepts connections until ctx is cancelled or an
// unrecoverable error occurs. A single connection's failure never terminates
// the accept loop. On cancellation the server stops accepting, waits up to
// ShutdownTimeout for active connections to drain, then cancels whatever is
// still in flight.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.config.BindAddress, s.config.Port))
	if err != nil {
		return fmt.Errorf("start listener: %w", err)
	}
	if s.config.MaxConnections > 0 {
		listener = netutil.LimitListener(listener, s.config.MaxConnections)
	}

	s.listener = listener
	close(s.ready)
	logger.Info("server listening on %s", listener.Addr())

	s.metrics.startReporter(s.shutdownCtx, s.config.MetricsInterval)

	go func() {
		<-ctx.Done()
		s.initiateShutdown()
	}()

	acceptCtx, cancelAccept := context.WithCancel(context.Background())
	defer cancelAccept()
	go func() {
		<-s.shutdown
		cancelAccept()
	}()

	for {
		select {
		case <-s.shutdown:
			return s.gracefulShutdown()
		default:
		}

		if s.limiter != nil {
			if err := s.limiter.Wait(acceptCtx); err != nil {
				return s.gracefulShutdown()
			}
		}

		tcpConn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return s.gracefulShutdown()
			default:
				logger.Debug("accept error: %v", err)
				continue
			}
		}

		s.metrics.RecordConnection()
		s.activeConns.Add(1)

		c := &conn{server: s, conn: tcpConn}
		go func() {
			defer func() {
				s.metrics.RecordConnectionClosed()
				s.activeConns.Done()
			}()
			c.serve(s.shutdownCtx)
		}()
	}
}

// Stop initiates graceful shutdown; safe to call multiple times.
func (s *Server) Stop() error {
	s.initiateShutdown()
	return s.gracefulShutdown()
}

func (s *Server) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)
		if s.listener != nil {
			_ = s.listener.Close()
		}
	})
}

func (s *Server) gracefulShutdown() error {
	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	timeout := s.config.ShutdownTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	select {
	case <-done:
		s.cancelRequests()
		logger.Info("all connections closed")
		return nil
	case <-time.After(timeout):
		// Force-cancel whatever is still in flight before giving up.
		s.cancelRequests()
		return fmt.Errorf("shutdown timeout exceeded with connections still active")
	}
}
