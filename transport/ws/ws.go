// Package ws provides a WebSocket client transport feeding the framer.
package ws

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/serialframe/errors"
	"github.com/c360/serialframe/metric"
	"github.com/c360/serialframe/transport"
)

// Metrics holds Prometheus metrics for the WebSocket transport.
type Metrics struct {
	messagesReceived  prometheus.Counter
	bytesReceived     prometheus.Counter
	connectionsActive prometheus.Gauge
	connectionsTotal  prometheus.Counter
	reconnectAttempts prometheus.Counter
	readErrors        prometheus.Counter
}

func newMetrics(registry *metric.MetricsRegistry, componentName string) *Metrics {
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		messagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "serialframe",
			Subsystem: "ws",
			Name:      "messages_received_total",
			Help:      "Total messages received via WebSocket",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "serialframe",
			Subsystem: "ws",
			Name:      "bytes_received_total",
			Help:      "Total payload bytes received via WebSocket",
		}),
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "serialframe",
			Subsystem: "ws",
			Name:      "connections_active",
			Help:      "Whether the WebSocket connection is currently up (0 or 1)",
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "serialframe",
			Subsystem: "ws",
			Name:      "connections_total",
			Help:      "Total number of WebSocket connections established",
		}),
		reconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "serialframe",
			Subsystem: "ws",
			Name:      "reconnect_attempts_total",
			Help:      "Total number of reconnection attempts",
		}),
		readErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "serialframe",
			Subsystem: "ws",
			Name:      "read_errors_total",
			Help:      "Read errors encountered on the connection",
		}),
	}

	registry.RegisterCounter(componentName, "messages_received", metrics.messagesReceived)
	registry.RegisterCounter(componentName, "bytes_received", metrics.bytesReceived)
	registry.RegisterCounter(componentName, "connections_total", metrics.connectionsTotal)
	registry.RegisterCounter(componentName, "reconnect_attempts", metrics.reconnectAttempts)
	registry.RegisterCounter(componentName, "read_errors", metrics.readErrors)
	registry.RegisterGauge(componentName, "connections_active", metrics.connectionsActive)

	return metrics
}

// ReconnectConfig controls reconnection after a failed dial or a dropped
// connection.
type ReconnectConfig struct {
	Enabled         bool          `json:"enabled"`
	MaxRetries      int           `json:"max_retries"` // 0 = unlimited
	InitialInterval time.Duration `json:"initial_interval"`
	MaxInterval     time.Duration `json:"max_interval"`
	Multiplier      float64       `json:"multiplier"`
}

// Config holds configuration for the WebSocket transport.
type Config struct {
	URL              string           `json:"url"`
	HandshakeTimeout time.Duration    `json:"handshake_timeout"`
	Reconnect        *ReconnectConfig `json:"reconnect"`
}

// DefaultConfig returns sensible defaults minus the URL, which has no
// meaningful default.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 45 * time.Second,
		Reconnect: &ReconnectConfig{
			Enabled:         true,
			MaxRetries:      0,
			InitialInterval: time.Second,
			MaxInterval:     30 * time.Second,
			Multiplier:      2.0,
		},
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig,
			"ws-transport", "Validate", "URL validation")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return errors.WrapInvalid(err, "ws-transport", "Validate", "URL parsing")
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return errors.WrapInvalid(fmt.Errorf("unsupported scheme %q", u.Scheme),
			"ws-transport", "Validate", "scheme validation")
	}
	return nil
}

// Deps holds runtime dependencies for the WebSocket transport.
type Deps struct {
	Name            string
	Config          Config
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
}

// Transport dials a WebSocket endpoint in client mode and stages the payload
// of every text or binary message for the framer. Message boundaries are not
// preserved; records come from the delimiter.
type Transport struct {
	name   string
	config Config
	logger *slog.Logger

	pipe *transport.Pipe

	conn   *websocket.Conn
	connMu sync.Mutex

	reconnectAttempts atomic.Int32

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}
	started      atomic.Bool
	wg           sync.WaitGroup

	messagesReceived atomic.Int64
	bytesReceived    atomic.Int64
	readErrors       atomic.Int64

	metrics *Metrics
}

var _ transport.Transport = (*Transport)(nil)

// New creates a WebSocket transport from its dependencies.
func New(deps Deps) (*Transport, error) {
	cfg := deps.Config
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 45 * time.Second
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "ws-transport", "url", cfg.URL)
	}

	return &Transport{
		name:    deps.Name,
		config:  cfg,
		logger:  logger,
		pipe:    transport.NewPipe(),
		metrics: newMetrics(deps.MetricsRegistry, deps.Name),
	}, nil
}

// Available reports the number of staged bytes.
func (t *Transport) Available() int { return t.pipe.Available() }

// Read drains staged bytes into p.
func (t *Transport) Read(p []byte) (int, error) { return t.pipe.Read(p) }

// Subscribe registers the data-ready callback.
func (t *Transport) Subscribe(fn func()) { t.pipe.Subscribe(fn) }

// Start launches the connect loop. Idempotent while running.
func (t *Transport) Start(ctx context.Context) error {
	if !t.started.CompareAndSwap(false, true) {
		return nil
	}

	t.shutdown = make(chan struct{})
	t.shutdownOnce = sync.Once{}
	t.done = make(chan struct{})

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer close(t.done)
		t.connectLoop(ctx)
	}()

	return nil
}

// Stop shuts the connection down and waits for the connect loop to exit.
func (t *Transport) Stop(timeout time.Duration) error {
	if !t.started.CompareAndSwap(true, false) {
		return nil
	}

	t.shutdownOnce.Do(func() { close(t.shutdown) })

	t.connMu.Lock()
	if t.conn != nil {
		_ = t.conn.Close()
	}
	t.connMu.Unlock()

	select {
	case <-t.done:
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
			"ws-transport", "Stop", "graceful shutdown")
	}
	return nil
}

// Close stops the transport and closes the staging pipe.
func (t *Transport) Close() error {
	err := t.Stop(5 * time.Second)
	_ = t.pipe.Close()
	return err
}

// connectLoop manages the client connection with reconnection.
func (t *Transport) connectLoop(ctx context.Context) {
	dialer := &websocket.Dialer{
		HandshakeTimeout: t.config.HandshakeTimeout,
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.shutdown:
			return
		default:
		}

		conn, resp, err := dialer.DialContext(ctx, t.config.URL, nil)
		if err != nil {
			t.readErrors.Add(1)
			status := 0
			if resp != nil {
				status = resp.StatusCode
			}
			t.logger.Warn("WebSocket dial failed",
				"url", t.config.URL,
				"status", status,
				"error", err)

			if !t.shouldReconnect() {
				return
			}
			if !t.sleepBeforeRetry(ctx) {
				return
			}
			continue
		}

		t.reconnectAttempts.Store(0)

		t.connMu.Lock()
		t.conn = conn
		t.connMu.Unlock()

		if t.metrics != nil {
			t.metrics.connectionsActive.Set(1)
			t.metrics.connectionsTotal.Inc()
		}
		t.logger.Info("WebSocket connected", "url", t.config.URL)

		t.readLoop(conn)

		t.connMu.Lock()
		t.conn = nil
		t.connMu.Unlock()

		if t.metrics != nil {
			t.metrics.connectionsActive.Set(0)
		}

		if !t.shouldReconnect() {
			return
		}
	}
}

// readLoop reads messages until the connection drops.
func (t *Transport) readLoop(conn *websocket.Conn) {
	for {
		select {
		case <-t.shutdown:
			return
		default:
		}

		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			t.readErrors.Add(1)
			if t.metrics != nil {
				t.metrics.readErrors.Inc()
			}
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		if len(payload) == 0 {
			continue
		}

		t.messagesReceived.Add(1)
		t.bytesReceived.Add(int64(len(payload)))
		if t.metrics != nil {
			t.metrics.messagesReceived.Inc()
			t.metrics.bytesReceived.Add(float64(len(payload)))
		}

		if _, err := t.pipe.Write(payload); err != nil {
			t.logger.Warn("staging pipe rejected message", "error", err)
			return
		}
	}
}

// shouldReconnect consumes one reconnection attempt.
func (t *Transport) shouldReconnect() bool {
	cfg := t.config.Reconnect
	if cfg == nil || !cfg.Enabled {
		return false
	}

	select {
	case <-t.shutdown:
		return false
	default:
	}

	current := t.reconnectAttempts.Load()
	if cfg.MaxRetries > 0 && int(current) >= cfg.MaxRetries {
		t.logger.Error("WebSocket reconnect attempts exhausted",
			"attempts", current, "url", t.config.URL)
		return false
	}

	t.reconnectAttempts.Add(1)
	if t.metrics != nil {
		t.metrics.reconnectAttempts.Inc()
	}
	return true
}

// sleepBeforeRetry waits the backoff delay, returning false if shut down.
func (t *Transport) sleepBeforeRetry(ctx context.Context) bool {
	delay := t.reconnectDelay()
	select {
	case <-ctx.Done():
		return false
	case <-t.shutdown:
		return false
	case <-time.After(delay):
		return true
	}
}

// reconnectDelay computes the exponential backoff for the current attempt.
func (t *Transport) reconnectDelay() time.Duration {
	cfg := t.config.Reconnect
	attempts := t.reconnectAttempts.Load()

	delay := cfg.InitialInterval
	if delay <= 0 {
		delay = time.Second
	}
	for j := int32(1); j < attempts; j++ {
		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if cfg.MaxInterval > 0 && delay > cfg.MaxInterval {
			return cfg.MaxInterval
		}
	}
	return delay
}
