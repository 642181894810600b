// Package natspub is a framer handler that forwards records to NATS.
package natspub

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/serialframe/errors"
	"github.com/c360/serialframe/framer"
	"github.com/c360/serialframe/pkg/retry"
)

// Publisher is the slice of a NATS connection the sink needs. *nats.Conn
// satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// overflowEvent is the JSON payload published when the framer drops bytes.
type overflowEvent struct {
	Dropped   int       `json:"dropped"`
	Timestamp time.Time `json:"timestamp"`
}

// Config holds sink configuration.
type Config struct {
	// Subject receives one message per extracted record.
	Subject string `json:"subject"`

	// OverflowSubject, when set, receives a JSON event per overflow.
	OverflowSubject string `json:"overflow_subject"`
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Subject == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig,
			"natspub", "Validate", "subject validation")
	}
	return nil
}

// Sink publishes each record to a NATS subject and, optionally, each
// overflow event to a companion subject. It implements framer.Handler, so
// publishes run inside the framer's delivery path: the retry policy is kept
// short to bound how long a broker hiccup can stall ingestion.
type Sink struct {
	pub             Publisher
	subject         string
	overflowSubject string
	logger          *slog.Logger
	retryConfig     retry.Config

	published     atomic.Int64
	publishErrors atomic.Int64
}

var _ framer.Handler = (*Sink)(nil)

// New creates a sink publishing through pub.
func New(pub Publisher, cfg Config, logger *slog.Logger) (*Sink, error) {
	if pub == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("nil publisher"),
			"natspub", "New", "publisher validation")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default().With("component", "natspub", "subject", cfg.Subject)
	}

	return &Sink{
		pub:             pub,
		subject:         cfg.Subject,
		overflowSubject: cfg.OverflowSubject,
		logger:          logger,
		retryConfig: retry.Config{
			MaxAttempts:  3,
			InitialDelay: 10 * time.Millisecond,
			MaxDelay:     100 * time.Millisecond,
			Multiplier:   2.0,
			AddJitter:    true,
		},
	}, nil
}

// OnRecord publishes one record. The record slice is only valid for the
// duration of the call, so it is copied before leaving the handler.
func (s *Sink) OnRecord(record []byte) {
	data := make([]byte, len(record))
	copy(data, record)

	if err := s.publish(s.subject, data); err != nil {
		s.publishErrors.Add(1)
		s.logger.Warn("record publish failed",
			"subject", s.subject,
			"bytes", len(data),
			"error", err)
		return
	}
	s.published.Add(1)
}

// OnOverflow publishes a JSON overflow event when a companion subject is
// configured.
func (s *Sink) OnOverflow(dropped int) {
	if s.overflowSubject == "" {
		return
	}

	payload, err := json.Marshal(overflowEvent{
		Dropped:   dropped,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		s.publishErrors.Add(1)
		return
	}

	if err := s.publish(s.overflowSubject, payload); err != nil {
		s.publishErrors.Add(1)
		s.logger.Warn("overflow publish failed",
			"subject", s.overflowSubject,
			"dropped", dropped,
			"error", err)
	}
}

// Published returns the number of records delivered to the broker.
func (s *Sink) Published() int64 { return s.published.Load() }

// PublishErrors returns the number of publishes abandoned after retries.
func (s *Sink) PublishErrors() int64 { return s.publishErrors.Load() }

// publish sends data with retry on transient failures.
func (s *Sink) publish(subject string, data []byte) error {
	return retry.Do(context.Background(), s.retryConfig, func() error {
		if err := s.pub.Publish(subject, data); err != nil {
			if !errors.IsTransient(err) && !isBrokerTransient(err) {
				return retry.NonRetryable(err)
			}
			return err
		}
		return nil
	})
}

// isBrokerTransient reports whether a raw NATS error is worth retrying.
func isBrokerTransient(err error) bool {
	switch {
	case stderrors.Is(err, nats.ErrConnectionClosed),
		stderrors.Is(err, nats.ErrConnectionDraining),
		stderrors.Is(err, nats.ErrTimeout),
		stderrors.Is(err, nats.ErrNoServers),
		stderrors.Is(err, nats.ErrConnectionReconnecting):
		return true
	}
	return false
}

// Dial connects to a NATS server with the reconnect posture this sink
// expects: unlimited reconnects with a small wait so short broker outages
// surface as transient publish errors rather than a dead connection.
func Dial(url string, clientName string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.Timeout(5 * time.Second),
		nats.PingInterval(20 * time.Second),
	}
	if clientName != "" {
		opts = append(opts, nats.Name(clientName))
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, errors.WrapTransient(err, "natspub", "Dial", "NATS connect")
	}
	return conn, nil
}
