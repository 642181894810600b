// Package udp provides a UDP datagram transport feeding the framer.
package udp

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/serialframe/errors"
	"github.com/c360/serialframe/metric"
	"github.com/c360/serialframe/pkg/retry"
	"github.com/c360/serialframe/transport"
)

// Metrics holds Prometheus metrics for the UDP transport.
type Metrics struct {
	packetsReceived prometheus.Counter
	bytesReceived   prometheus.Counter
	socketErrors    prometheus.Counter
	lastActivity    prometheus.Gauge
}

// newMetrics creates and registers UDP transport metrics. Returns nil when
// no registry is provided.
func newMetrics(registry *metric.MetricsRegistry, port int) *Metrics {
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		packetsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "serialframe",
			Subsystem: "udp",
			Name:      "packets_received_total",
			Help:      "Total UDP packets received",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "serialframe",
			Subsystem: "udp",
			Name:      "bytes_received_total",
			Help:      "Total bytes received from UDP",
		}),
		socketErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "serialframe",
			Subsystem: "udp",
			Name:      "socket_errors_total",
			Help:      "Socket read errors encountered",
		}),
		lastActivity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "serialframe",
			Subsystem: "udp",
			Name:      "last_activity_timestamp",
			Help:      "Unix timestamp of last received packet",
		}),
	}

	serviceName := fmt.Sprintf("udp_%d", port)
	registry.RegisterCounter(serviceName, "packets_received", metrics.packetsReceived)
	registry.RegisterCounter(serviceName, "bytes_received", metrics.bytesReceived)
	registry.RegisterCounter(serviceName, "socket_errors", metrics.socketErrors)
	registry.RegisterGauge(serviceName, "last_activity", metrics.lastActivity)

	return metrics
}

// Config holds configuration for the UDP transport.
type Config struct {
	Bind string `json:"bind"`
	Port int    `json:"port"`
}

// DefaultConfig returns sensible defaults for the UDP transport.
func DefaultConfig() Config {
	return Config{
		Bind: "0.0.0.0",
		Port: 14550,
	}
}

// Validate checks the configuration. Port 0 is allowed for OS
// auto-assignment.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.WrapInvalid(fmt.Errorf("invalid port %d", c.Port),
			"udp-transport", "Validate", "port validation")
	}
	if c.Bind == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig,
			"udp-transport", "Validate", "bind address validation")
	}
	return nil
}

// Deps holds runtime dependencies for the UDP transport.
type Deps struct {
	Name            string
	Config          Config
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
}

// Transport listens on a UDP socket and stages every received datagram's
// payload for the framer. Datagram boundaries are deliberately not
// preserved: downstream record boundaries come from the delimiter, not the
// packet framing.
type Transport struct {
	name   string
	bind   string
	port   int
	logger *slog.Logger

	pipe *transport.Pipe

	retryConfig retry.Config

	shutdown  chan struct{}
	done      chan struct{}
	running   atomic.Bool
	startTime time.Time
	mu        sync.RWMutex
	wg        sync.WaitGroup
	conn      *net.UDPConn

	packetsReceived atomic.Int64
	bytesReceived   atomic.Int64
	readErrors      atomic.Int64

	metrics *Metrics
}

var _ transport.Transport = (*Transport)(nil)

// New creates a UDP transport from its dependencies.
func New(deps Deps) (*Transport, error) {
	cfg := deps.Config
	if cfg.Bind == "" && cfg.Port == 0 {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "udp-transport", "port", cfg.Port)
	}

	return &Transport{
		name:        deps.Name,
		bind:        cfg.Bind,
		port:        cfg.Port,
		logger:      logger,
		pipe:        transport.NewPipe(),
		retryConfig: retry.DefaultConfig(),
		startTime:   time.Now(),
		metrics:     newMetrics(deps.MetricsRegistry, cfg.Port),
	}, nil
}

// Available reports the number of staged bytes.
func (u *Transport) Available() int { return u.pipe.Available() }

// Read drains staged bytes into p.
func (u *Transport) Read(p []byte) (int, error) { return u.pipe.Read(p) }

// Subscribe registers the data-ready callback.
func (u *Transport) Subscribe(fn func()) { u.pipe.Subscribe(fn) }

// LocalAddr returns the bound socket address, or nil before Start.
func (u *Transport) LocalAddr() net.Addr {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.conn == nil {
		return nil
	}
	return u.conn.LocalAddr()
}

// Start binds the socket and begins the read loop. Idempotent while running.
func (u *Transport) Start(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.running.Load() {
		return nil
	}

	u.shutdown = make(chan struct{})
	u.done = make(chan struct{})

	if err := retry.Do(ctx, u.retryConfig, u.bindSocket); err != nil {
		u.cleanupUnlocked()
		return errors.WrapTransient(err, "udp-transport", "Start", "socket binding")
	}

	u.running.Store(true)
	u.startTime = time.Now()

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		defer close(u.done)
		u.readLoop(ctx)
	}()

	u.logger.Info("UDP transport listening",
		"bind", u.bind,
		"port", u.port,
		"addr", u.conn.LocalAddr().String())
	return nil
}

// bindSocket creates and binds the UDP socket.
func (u *Transport) bindSocket() error {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", u.bind, u.port))
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address %s:%d: %w", u.bind, u.port, err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP port %d: %w", u.port, err)
	}

	// Large OS buffer so bursts survive until the read loop drains them.
	const socketBufferSize = 2 * 1024 * 1024
	if err := conn.SetReadBuffer(socketBufferSize); err != nil {
		u.logger.Warn("Could not set UDP buffer size",
			"buffer_size", socketBufferSize,
			"port", u.port,
			"error", err)
	}

	u.conn = conn
	return nil
}

// Stop gracefully stops the read loop within the given timeout.
func (u *Transport) Stop(timeout time.Duration) error {
	if !u.running.Load() {
		return nil
	}
	u.running.Store(false)

	u.mu.Lock()
	if u.shutdown != nil {
		select {
		case <-u.shutdown:
		default:
			close(u.shutdown)
		}
	}
	if u.conn != nil {
		_ = u.conn.Close()
	}
	done := u.done
	u.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-time.After(timeout):
			return errors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
				"udp-transport", "Stop", "graceful shutdown")
		}
	}

	u.mu.Lock()
	u.cleanupUnlocked()
	u.mu.Unlock()
	return nil
}

// Close stops the transport and closes the staging pipe.
func (u *Transport) Close() error {
	err := u.Stop(5 * time.Second)
	_ = u.pipe.Close()
	return err
}

func (u *Transport) cleanupUnlocked() {
	if u.shutdown != nil {
		select {
		case <-u.shutdown:
		default:
			close(u.shutdown)
		}
		u.shutdown = nil
	}
	u.done = nil
	if u.conn != nil {
		_ = u.conn.Close()
		u.conn = nil
	}
}

// readLoop continuously reads UDP packets and stages their payloads.
func (u *Transport) readLoop(ctx context.Context) {
	datagram := make([]byte, 65536)

	for u.running.Load() {
		select {
		case <-ctx.Done():
			return
		case <-u.shutdown:
			return
		default:
		}

		u.mu.RLock()
		conn := u.conn
		u.mu.RUnlock()
		if conn == nil {
			return
		}

		// Short deadline so shutdown is noticed promptly.
		_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

		n, _, err := conn.ReadFromUDP(datagram)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}

			select {
			case <-ctx.Done():
				return
			case <-u.shutdown:
				return
			default:
				u.readErrors.Add(1)
				if u.metrics != nil {
					u.metrics.socketErrors.Inc()
				}
				if !errors.IsTransient(err) {
					u.logger.Error("UDP read failed", "error", err)
					return
				}
				continue
			}
		}
		if n == 0 {
			continue
		}

		u.packetsReceived.Add(1)
		u.bytesReceived.Add(int64(n))
		if u.metrics != nil {
			u.metrics.packetsReceived.Inc()
			u.metrics.bytesReceived.Add(float64(n))
			u.metrics.lastActivity.Set(float64(time.Now().Unix()))
		}

		if _, err := u.pipe.Write(datagram[:n]); err != nil {
			u.logger.Warn("staging pipe rejected datagram", "error", err)
			return
		}
	}
}
