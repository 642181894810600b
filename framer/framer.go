package framer

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/c360/serialframe/errors"
)

// DefaultCapacity is the buffer size used when callers have no better number.
const DefaultCapacity = 65536

// Source is the pull side of the external transport contract: a non-blocking
// availability query plus a read that copies up to len(p) bytes into p and
// returns the actual count. Short reads, including zero, are not errors;
// they end the current ingest cycle early.
type Source interface {
	Available() int
	Read(p []byte) (n int, err error)
}

// Handler receives framed records and overflow notifications. Both calls are
// synchronous and made while the framer lock is held: a slow handler stalls
// ingestion and any concurrent Discard or Stats call. The record slice is
// borrowed and only valid for the duration of the call; copy it to retain.
//
// A panicking handler does not corrupt the framer: the panic is recovered at
// the call site and surfaced through the CallbackFaults counter.
type Handler interface {
	OnRecord(record []byte)
	OnOverflow(dropped int)
}

// Handlers adapts plain functions to the Handler interface. Nil fields are
// simply skipped.
type Handlers struct {
	Record   func(record []byte)
	Overflow func(dropped int)
}

// OnRecord implements Handler.
func (h Handlers) OnRecord(record []byte) {
	if h.Record != nil {
		h.Record(record)
	}
}

// OnOverflow implements Handler.
func (h Handlers) OnOverflow(dropped int) {
	if h.Overflow != nil {
		h.Overflow(dropped)
	}
}

// Framer consumes an arbitrarily-chunked byte stream from a Source and emits
// delimiter-terminated records under a fixed memory ceiling. When an incoming
// batch would not fit, the oldest buffered bytes are dropped first so the
// most recent window is always retained.
//
// All methods are safe for concurrent use. A single mutex guards the ring,
// the scan cursor, and every counter, so a statistics snapshot always
// reflects one consistent instant.
type Framer struct {
	mu     sync.Mutex
	ring   ring
	cursor int // offset from head below which the delimiter cannot start
	delim  []byte
	src    Source

	handler     Handler
	closeSource bool
	closed      atomic.Bool

	logger *slog.Logger

	// Counters, guarded by mu.
	records        int64
	bytesReceived  int64
	overflowEvents int64
	bytesDiscarded int64
	emptyRecords   int64
	manualDiscards int64
	callbackFaults int64
	peakUsage      int

	metrics *framerMetrics
}

// New creates a framer over src with the given buffer capacity. Configuration
// is validated eagerly: a non-positive capacity or an empty delimiter fails
// construction. The delimiter defaults to a single newline byte.
func New(src Source, capacity int, options ...Option) (*Framer, error) {
	if src == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig,
			"Framer", "New", "source validation")
	}
	if capacity <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidCapacity,
			"Framer", "New", "capacity validation")
	}

	opts := applyOptions(options...)
	if len(opts.delimiter) == 0 {
		return nil, errors.WrapInvalid(errors.ErrEmptyDelimiter,
			"Framer", "New", "delimiter validation")
	}

	var metrics *framerMetrics
	if opts.metricsReg != nil && opts.metricsPrefix != "" {
		var err error
		metrics, err = newFramerMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "Framer", "New", "metrics registration")
		}
	}

	logger := opts.logger
	if logger == nil {
		logger = slog.Default().With("component", "framer")
	}

	// Delimiter is copied so later mutation by the caller cannot skew the scan.
	delim := make([]byte, len(opts.delimiter))
	copy(delim, opts.delimiter)

	return &Framer{
		ring:        newRing(capacity),
		delim:       delim,
		src:         src,
		handler:     opts.handler,
		closeSource: opts.closeSource,
		logger:      logger,
		metrics:     metrics,
	}, nil
}

// Capacity returns the fixed buffer capacity in bytes.
func (f *Framer) Capacity() int {
	return f.ring.capacity() // immutable, no lock needed
}

// Delimiter returns a copy of the configured delimiter.
func (f *Framer) Delimiter() []byte {
	d := make([]byte, len(f.delim))
	copy(d, f.delim)
	return d
}

// Usage returns the number of currently buffered bytes.
func (f *Framer) Usage() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ring.count
}

// Ingest runs one ingest cycle: it pulls whatever the source reports as
// available into the ring (evicting the oldest bytes first when the batch
// would not fit), then scans for delimiters and delivers each completed
// record to the handler. It returns the number of bytes consumed from the
// source. Wire Ingest to the transport's data-ready notification.
func (f *Framer) Ingest() (int, error) {
	if f.closed.Load() {
		return 0, errors.WrapInvalid(errors.ErrClosed, "Framer", "Ingest", "closed check")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	pending := f.src.Available()
	if pending <= 0 {
		return 0, nil
	}

	skip := f.makeRoom(pending)
	total := 0

	// A batch larger than the whole buffer: the leading excess can never be
	// delivered, so it is read and dropped before any byte is stored. Both
	// counters accrue only what the source actually yields.
	for skip > 0 {
		var sink [scratchThreshold]byte
		chunk := skip
		if chunk > len(sink) {
			chunk = len(sink)
		}
		n, err := f.src.Read(sink[:chunk])
		total += n
		f.bytesReceived += int64(n)
		f.bytesDiscarded += int64(n)
		skip -= n
		if f.metrics != nil {
			f.metrics.recordIngest(n, f.ring.count, f.ring.capacity(), f.peakUsage)
			f.metrics.recordSkipped(n)
		}
		if err != nil || n == 0 {
			f.scanAndEmit()
			return total, f.readError(err)
		}
	}

	toStore := pending - total
	for toStore > 0 {
		span := f.ring.tailSpan()
		if len(span) == 0 {
			break
		}
		if len(span) > toStore {
			span = span[:toStore]
		}
		n, err := f.src.Read(span)
		if n > 0 {
			f.ring.commit(n)
			total += n
			toStore -= n
			f.bytesReceived += int64(n)
			if f.ring.count > f.peakUsage {
				f.peakUsage = f.ring.count
			}
		}
		if f.metrics != nil {
			f.metrics.recordIngest(n, f.ring.count, f.ring.capacity(), f.peakUsage)
		}
		if err != nil || n == 0 {
			// Short read: the cycle ends early and resumes on the next signal.
			f.scanAndEmit()
			return total, f.readError(err)
		}
	}

	f.scanAndEmit()
	return total, nil
}

// readError classifies a source read error. EOF and nil mean the source is
// simply drained for now.
func (f *Framer) readError(err error) error {
	if err == nil || err == io.EOF {
		return nil
	}
	return errors.WrapTransient(err, "Framer", "Ingest", "source read")
}

// makeRoom guarantees space for an incoming batch of n bytes in one step.
// It evicts the oldest buffered bytes and, when the batch alone exceeds
// capacity, returns how many leading batch bytes the caller must discard.
// A single overflow event covers the whole shortfall. Only the evicted
// bytes are charged to the discard counters here; the skip portion accrues
// in the ingest loop as it is actually consumed, so a short read during the
// skip never overstates losses.
func (f *Framer) makeRoom(n int) (skip int) {
	free := f.ring.free()
	if n <= free {
		return 0
	}

	need := n - free
	evict := need
	if evict > f.ring.count {
		evict = f.ring.count
	}
	skip = need - evict

	if evict > 0 {
		f.ring.drop(evict)
		f.cursor -= evict
		if f.cursor < 0 {
			f.cursor = 0
		}
	}

	f.overflowEvents++
	f.bytesDiscarded += int64(evict)
	if f.metrics != nil {
		f.metrics.recordOverflow(evict)
	}
	f.notifyOverflow(need)
	return skip
}

// scanAndEmit repeatedly searches the buffered region for the delimiter,
// emitting one record per match. When no further match exists the scan
// position is cached so the next cycle never re-compares a byte already
// proven not to start a match.
func (f *Framer) scanAndEmit() {
	dlen := len(f.delim)
	for {
		i := f.findDelimiter()
		if i < 0 {
			f.cursor = f.ring.count - dlen + 1
			if f.cursor < 0 {
				f.cursor = 0
			}
			if f.metrics != nil {
				f.metrics.updateUsage(f.ring.count, f.ring.capacity())
			}
			return
		}

		if i == 0 {
			// Delimiter at the front: empty record, counted but never delivered.
			f.emptyRecords++
			if f.metrics != nil {
				f.metrics.recordEmpty()
			}
		} else {
			f.records++
			if f.metrics != nil {
				f.metrics.recordEmitted(i)
			}
			f.emitRecord(i)
		}

		f.ring.drop(i + dlen)
		f.cursor = 0
	}
}

// findDelimiter returns the smallest offset >= cursor where the delimiter
// starts, or -1. Single-byte delimiters take a direct equality scan.
func (f *Framer) findDelimiter() int {
	dlen := len(f.delim)
	last := f.ring.count - dlen
	if last < 0 {
		return -1
	}

	if dlen == 1 {
		b := f.delim[0]
		for i := f.cursor; i <= last; i++ {
			if f.ring.byteAt(i) == b {
				return i
			}
		}
		return -1
	}

	for i := f.cursor; i <= last; i++ {
		if f.matchAt(i) {
			return i
		}
	}
	return -1
}

func (f *Framer) matchAt(i int) bool {
	for j := 0; j < len(f.delim); j++ {
		if f.ring.byteAt(i+j) != f.delim[j] {
			return false
		}
	}
	return true
}

// Discard unconditionally empties the buffer and resets the scan position,
// returning the number of bytes that were buffered. Every call counts as a
// manual discard, even on an empty buffer. Peak usage is never decreased.
func (f *Framer) Discard() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := f.ring.count
	f.ring.reset()
	f.cursor = 0

	f.manualDiscards++
	if n > 0 {
		f.bytesDiscarded += int64(n)
	}
	if f.metrics != nil {
		f.metrics.recordDiscard(n)
		f.metrics.updateUsage(0, f.ring.capacity())
	}
	return n
}

// Stats returns a snapshot of all counters. All fields reflect the same
// instant because the snapshot is taken under the framer lock.
func (f *Framer) Stats() Statistics {
	f.mu.Lock()
	defer f.mu.Unlock()

	return Statistics{
		Records:        f.records,
		BytesReceived:  f.bytesReceived,
		OverflowEvents: f.overflowEvents,
		BytesDiscarded: f.bytesDiscarded,
		EmptyRecords:   f.emptyRecords,
		ManualDiscards: f.manualDiscards,
		CallbackFaults: f.callbackFaults,
		PeakUsage:      f.peakUsage,
		Usage:          f.ring.count,
	}
}

// Close tears the framer down. The first call closes the source when the
// framer owns it; every subsequent call is a no-op. Close is guarded by an
// atomic flag independent of the main lock, so it never blocks behind a slow
// handler.
func (f *Framer) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return nil
	}
	if f.closeSource {
		if c, ok := f.src.(io.Closer); ok {
			if err := c.Close(); err != nil {
				return errors.WrapTransient(err, "Framer", "Close", "source close")
			}
		}
	}
	return nil
}

// notifyOverflow delivers the overflow event, isolating handler panics.
func (f *Framer) notifyOverflow(dropped int) {
	if f.handler == nil {
		return
	}
	defer f.recoverHandler("overflow")
	f.handler.OnOverflow(dropped)
}

// recoverHandler is the isolation boundary for consumer callbacks: a fault in
// the handler must not corrupt ring invariants or abort the ingest cycle.
// Faults are counted rather than silently dropped.
func (f *Framer) recoverHandler(site string) {
	if r := recover(); r != nil {
		f.callbackFaults++
		if f.metrics != nil {
			f.metrics.recordFault()
		}
		f.logger.Warn("handler panicked", "site", site, "panic", r)
	}
}
