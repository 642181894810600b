// Package stream adapts any io.ReadCloser into a framer transport.
package stream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/serialframe/errors"
	"github.com/c360/serialframe/transport"
)

// DefaultChunkSize is the read granularity when none is configured.
const DefaultChunkSize = 4096

// Deps holds runtime dependencies for the stream transport.
type Deps struct {
	Name      string
	Reader    io.ReadCloser
	ChunkSize int
	Logger    *slog.Logger
}

// Transport pumps bytes from an io.ReadCloser into the staging pipe. It is
// the adapter for stdin, serial device files, TCP connections, or anything
// else exposing a blocking byte stream. The transport owns the reader: Stop
// closes it to unblock the pump goroutine.
type Transport struct {
	name   string
	reader io.ReadCloser
	chunk  int
	logger *slog.Logger

	pipe *transport.Pipe

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}
	started      atomic.Bool
	wg           sync.WaitGroup

	bytesRead atomic.Int64
	drained   atomic.Bool
}

var _ transport.Transport = (*Transport)(nil)

// New creates a stream transport from its dependencies.
func New(deps Deps) (*Transport, error) {
	if deps.Reader == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig,
			"stream-transport", "New", "reader validation")
	}

	chunk := deps.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "stream-transport")
	}

	return &Transport{
		name:   deps.Name,
		reader: deps.Reader,
		chunk:  chunk,
		logger: logger,
		pipe:   transport.NewPipe(),
	}, nil
}

// Available reports the number of staged bytes.
func (t *Transport) Available() int { return t.pipe.Available() }

// Read drains staged bytes into p.
func (t *Transport) Read(p []byte) (int, error) { return t.pipe.Read(p) }

// Subscribe registers the data-ready callback.
func (t *Transport) Subscribe(fn func()) { t.pipe.Subscribe(fn) }

// Drained reports whether the underlying reader reached EOF. Staged bytes
// may still be readable after this turns true.
func (t *Transport) Drained() bool { return t.drained.Load() }

// Done returns a channel closed when the pump goroutine exits, whether from
// EOF, a read error, or Stop.
func (t *Transport) Done() <-chan struct{} { return t.done }

// Start launches the pump goroutine. Idempotent while running.
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
		t.pump(ctx)
	}()

	return nil
}

// Stop closes the reader to unblock the pump and waits for it to exit.
func (t *Transport) Stop(timeout time.Duration) error {
	if !t.started.CompareAndSwap(true, false) {
		return nil
	}

	t.shutdownOnce.Do(func() { close(t.shutdown) })
	_ = t.reader.Close()

	select {
	case <-t.done:
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
			"stream-transport", "Stop", "graceful shutdown")
	}
	return nil
}

// Close stops the transport and closes the staging pipe.
func (t *Transport) Close() error {
	err := t.Stop(5 * time.Second)
	_ = t.pipe.Close()
	return err
}

// pump reads fixed-size chunks until EOF, error, or shutdown.
func (t *Transport) pump(ctx context.Context) {
	buf := make([]byte, t.chunk)

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.shutdown:
			return
		default:
		}

		n, err := t.reader.Read(buf)
		if n > 0 {
			t.bytesRead.Add(int64(n))
			if _, werr := t.pipe.Write(buf[:n]); werr != nil {
				t.logger.Warn("staging pipe rejected chunk", "error", werr)
				return
			}
		}
		if err != nil {
			if err == io.EOF {
				t.drained.Store(true)
				t.logger.Info("stream drained", "bytes", t.bytesRead.Load())
				return
			}
			select {
			case <-t.shutdown:
				// Reader closed by Stop.
			default:
				t.logger.Error("stream read failed", "error", err)
			}
			return
		}
	}
}
