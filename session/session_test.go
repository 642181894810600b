package session

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/c360/serialframe/errors"
	"github.com/c360/serialframe/metric"
	"github.com/c360/serialframe/transport"
)

// recorder collects delivered records and overflow events.
type recorder struct {
	mu        sync.Mutex
	records   []string
	overflows []int
}

func (r *recorder) OnRecord(record []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, string(record))
}

func (r *recorder) OnOverflow(dropped int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overflows = append(r.overflows, dropped)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.records...)
}

func newSession(t *testing.T, cfg Config, pipe *transport.Pipe, h *recorder) *Session {
	t.Helper()
	sess, err := New(cfg, Deps{Transport: pipe, Handler: h})
	require.NoError(t, err)
	return sess
}

func TestNewRequiresTransport(t *testing.T) {
	_, err := New(Config{}, Deps{})
	require.Error(t, err)
}

func TestNewRejectsNegativeCapacity(t *testing.T) {
	_, err := New(Config{Capacity: -1}, Deps{Transport: transport.NewPipe()})
	require.Error(t, err)
	require.ErrorIs(t, err, errors.ErrInvalidCapacity)
}

func TestSessionIdentity(t *testing.T) {
	pipe := transport.NewPipe()
	a := newSession(t, Config{Name: "alpha"}, pipe, nil)
	b := newSession(t, Config{Name: "alpha"}, transport.NewPipe(), nil)

	require.Equal(t, "alpha", a.Name())
	require.NotEmpty(t, a.ID())
	require.NotEqual(t, a.ID(), b.ID())
}

func TestRecordsFlowFromTransportToHandler(t *testing.T) {
	pipe := transport.NewPipe()
	h := &recorder{}
	sess := newSession(t, Config{Name: "flow", Capacity: 64}, pipe, h)

	require.NoError(t, sess.Start(context.Background()))
	defer sess.Stop()

	_, err := pipe.Write([]byte("one\ntwo\npartial"))
	require.NoError(t, err)
	require.Equal(t, []string{"one", "two"}, h.snapshot())

	_, err = pipe.Write([]byte(" done\n"))
	require.NoError(t, err)
	require.Equal(t, []string{"one", "two", "partial done"}, h.snapshot())

	stats := sess.Stats()
	require.EqualValues(t, 3, stats.Records)
	require.Zero(t, sess.Usage())
}

func TestStartDrainsPreStagedData(t *testing.T) {
	pipe := transport.NewPipe()
	_, err := pipe.Write([]byte("early bird\n"))
	require.NoError(t, err)

	h := &recorder{}
	sess := newSession(t, Config{Capacity: 64}, pipe, h)
	require.NoError(t, sess.Start(context.Background()))
	defer sess.Stop()

	require.Equal(t, []string{"early bird"}, h.snapshot())
}

func TestCustomDelimiter(t *testing.T) {
	pipe := transport.NewPipe()
	h := &recorder{}
	sess := newSession(t, Config{Capacity: 64, Delimiter: []byte("\r\n")}, pipe, h)

	require.NoError(t, sess.Start(context.Background()))
	defer sess.Stop()

	_, err := pipe.Write([]byte("$GPGGA,x\r\nnot done yet"))
	require.NoError(t, err)
	require.Equal(t, []string{"$GPGGA,x"}, h.snapshot())
}

func TestLifecycleGuards(t *testing.T) {
	pipe := transport.NewPipe()
	sess := newSession(t, Config{}, pipe, nil)

	require.ErrorIs(t, sess.Stop(), errors.ErrNotStarted)

	require.NoError(t, sess.Start(context.Background()))
	require.ErrorIs(t, sess.Start(context.Background()), errors.ErrAlreadyStarted)

	require.NoError(t, sess.Stop())
	require.NoError(t, sess.Stop())
	require.ErrorIs(t, sess.Start(context.Background()), errors.ErrAlreadyStopped)
}

func TestStopOwnsTransportWhenConfigured(t *testing.T) {
	pipe := transport.NewPipe()
	sess, err := New(Config{OwnTransport: true}, Deps{Transport: pipe})
	require.NoError(t, err)

	require.NoError(t, sess.Start(context.Background()))
	require.NoError(t, sess.Stop())

	_, err = pipe.Write([]byte("late"))
	require.ErrorIs(t, err, errors.ErrClosed)
}

func TestStopLeavesTransportOpenByDefault(t *testing.T) {
	pipe := transport.NewPipe()
	sess := newSession(t, Config{}, pipe, nil)

	require.NoError(t, sess.Start(context.Background()))
	require.NoError(t, sess.Stop())

	_, err := pipe.Write([]byte("still open"))
	require.NoError(t, err)
}

func TestDiscardAndUsagePassThrough(t *testing.T) {
	pipe := transport.NewPipe()
	sess := newSession(t, Config{Capacity: 32}, pipe, nil)

	require.NoError(t, sess.Start(context.Background()))
	defer sess.Stop()

	_, err := pipe.Write([]byte("no delimiter here"))
	require.NoError(t, err)
	require.Equal(t, 17, sess.Usage())
	require.Equal(t, 32, sess.Capacity())

	require.Equal(t, 17, sess.Discard())
	require.Zero(t, sess.Usage())
	require.EqualValues(t, 1, sess.Stats().ManualDiscards)
}

func TestHealthReflectsLifecycle(t *testing.T) {
	pipe := transport.NewPipe()
	sess := newSession(t, Config{}, pipe, nil)

	require.False(t, sess.Health().Healthy)

	require.NoError(t, sess.Start(context.Background()))
	health := sess.Health()
	require.True(t, health.Healthy)
	require.Zero(t, health.ErrorCount)

	require.NoError(t, sess.Stop())
	require.False(t, sess.Health().Healthy)
}

func TestMetricsRegistryIsOptional(t *testing.T) {
	pipe := transport.NewPipe()
	registry := metric.NewMetricsRegistry()

	sess, err := New(Config{Name: "metered", Capacity: 64},
		Deps{Transport: pipe, MetricsRegistry: registry})
	require.NoError(t, err)
	require.NoError(t, sess.Start(context.Background()))
	defer sess.Stop()

	_, err = pipe.Write([]byte("counted\n"))
	require.NoError(t, err)

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}
