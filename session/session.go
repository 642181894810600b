// Package session wires a transport to a framer and manages their shared
// lifecycle.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/c360/serialframe/errors"
	"github.com/c360/serialframe/framer"
	"github.com/c360/serialframe/metric"
	"github.com/c360/serialframe/transport"
)

// Config holds session configuration.
type Config struct {
	// Name labels logs and metrics. Defaults to "session".
	Name string `json:"name"`

	// Capacity is the framer ring size in bytes. 0 selects
	// framer.DefaultCapacity.
	Capacity int `json:"capacity"`

	// Delimiter terminates records. Empty selects "\n".
	Delimiter []byte `json:"delimiter"`

	// OwnTransport transfers transport ownership: Stop closes the
	// transport along with the framer.
	OwnTransport bool `json:"own_transport"`
}

// Validate checks the configuration. Zero values select defaults, so only
// actively invalid settings fail.
func (c *Config) Validate() error {
	if c.Capacity < 0 {
		return errors.WrapInvalid(errors.ErrInvalidCapacity,
			"session", "Validate", "capacity validation")
	}
	return nil
}

// Deps holds runtime dependencies for a session.
type Deps struct {
	Transport       transport.Transport
	Handler         framer.Handler
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
}

// HealthStatus is a point-in-time health snapshot.
type HealthStatus struct {
	Healthy    bool          `json:"healthy"`
	LastCheck  time.Time     `json:"last_check"`
	ErrorCount int           `json:"error_count"`
	LastError  string        `json:"last_error"`
	Uptime     time.Duration `json:"uptime"`
}

// Session binds one transport to one framer. The transport's data-ready
// callback drives ingestion; records and overflow events flow to the
// configured handler. Sessions are single-use: once stopped they cannot be
// restarted.
type Session struct {
	id     string
	name   string
	tr     transport.Transport
	fr     *framer.Framer
	logger *slog.Logger

	running   atomic.Bool
	stopped   atomic.Bool
	startTime time.Time

	ingestErrors atomic.Int64
	lastError    atomic.Value // stores string
}

// New creates a session from validated configuration and dependencies.
func New(cfg Config, deps Deps) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Transport == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("nil transport"),
			"session", "New", "transport validation")
	}

	name := cfg.Name
	if name == "" {
		name = "session"
	}
	capacity := cfg.Capacity
	if capacity == 0 {
		capacity = framer.DefaultCapacity
	}

	id := uuid.NewString()
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("session", name, "session_id", id)

	options := []framer.Option{
		framer.WithLogger(logger),
	}
	if len(cfg.Delimiter) > 0 {
		options = append(options, framer.WithDelimiter(cfg.Delimiter))
	}
	if deps.Handler != nil {
		options = append(options, framer.WithHandler(deps.Handler))
	}
	if cfg.OwnTransport {
		options = append(options, framer.WithCloseSource())
	}
	if deps.MetricsRegistry != nil {
		options = append(options, framer.WithMetrics(deps.MetricsRegistry, name))
	}

	fr, err := framer.New(deps.Transport, capacity, options...)
	if err != nil {
		return nil, errors.Wrap(err, "session", "New", "framer construction")
	}

	s := &Session{
		id:     id,
		name:   name,
		tr:     deps.Transport,
		fr:     fr,
		logger: logger,
	}
	s.lastError.Store("")
	return s, nil
}

// ID returns the unique session identifier.
func (s *Session) ID() string { return s.id }

// Name returns the configured session name.
func (s *Session) Name() string { return s.name }

// Start subscribes to the transport and begins ingesting. Data already
// staged before Start is picked up immediately.
func (s *Session) Start(_ context.Context) error {
	if s.stopped.Load() {
		return errors.WrapInvalid(errors.ErrAlreadyStopped,
			"session", "Start", "lifecycle check")
	}
	if !s.running.CompareAndSwap(false, true) {
		return errors.WrapInvalid(errors.ErrAlreadyStarted,
			"session", "Start", "lifecycle check")
	}

	s.startTime = time.Now()
	s.tr.Subscribe(s.onData)
	s.logger.Info("session started",
		"capacity", s.fr.Capacity(),
		"delimiter", fmt.Sprintf("%q", s.fr.Delimiter()))

	// Catch up on anything the transport staged before the subscription.
	if s.tr.Available() > 0 {
		s.onData()
	}
	return nil
}

// onData is the transport's data-ready callback.
func (s *Session) onData() {
	if !s.running.Load() {
		return
	}
	if _, err := s.fr.Ingest(); err != nil {
		s.ingestErrors.Add(1)
		s.lastError.Store(err.Error())
		s.logger.Warn("ingest failed", "error", err)
	}
}

// Stop unsubscribes and closes the framer. With OwnTransport set the
// transport is closed too. Stop is idempotent.
func (s *Session) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		if s.stopped.Load() {
			return nil
		}
		return errors.WrapInvalid(errors.ErrNotStarted,
			"session", "Stop", "lifecycle check")
	}
	s.stopped.Store(true)

	s.tr.Subscribe(nil)
	err := s.fr.Close()

	stats := s.fr.Stats()
	s.logger.Info("session stopped",
		"records", stats.Records,
		"bytes_received", stats.BytesReceived,
		"overflow_events", stats.OverflowEvents,
		"uptime", time.Since(s.startTime).String())
	return err
}

// Stats returns the framer's statistics snapshot.
func (s *Session) Stats() framer.Statistics { return s.fr.Stats() }

// Discard drops all buffered bytes, returning the count.
func (s *Session) Discard() int { return s.fr.Discard() }

// Usage returns the number of buffered bytes.
func (s *Session) Usage() int { return s.fr.Usage() }

// Capacity returns the ring capacity in bytes.
func (s *Session) Capacity() int { return s.fr.Capacity() }

// Health returns the current health snapshot.
func (s *Session) Health() HealthStatus {
	lastErr, _ := s.lastError.Load().(string)
	var uptime time.Duration
	if !s.startTime.IsZero() {
		uptime = time.Since(s.startTime)
	}
	return HealthStatus{
		Healthy:    s.running.Load(),
		LastCheck:  time.Now(),
		ErrorCount: int(s.ingestErrors.Load()),
		LastError:  lastErr,
		Uptime:     uptime,
	}
}
