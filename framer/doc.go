// Package framer provides a bounded-memory byte-stream framer: it consumes an
// unbounded, arbitrarily-chunked sequence of bytes from a pull-style source
// and emits discrete delimiter-terminated records, enforcing a fixed memory
// ceiling and surviving producer/consumer speed mismatches without unbounded
// growth.
//
// # Overview
//
// Bytes live in a fixed-capacity ring buffer allocated once at construction.
// The framer never reads on its own schedule: the surrounding system wires a
// transport's data-ready notification to Ingest, which pulls whatever is
// available, scans incrementally for the delimiter, and delivers each
// completed record synchronously to the configured Handler.
//
//	fr, err := framer.New(src, framer.DefaultCapacity,
//	    framer.WithDelimiter([]byte("\r\n")),
//	    framer.WithHandler(framer.Handlers{
//	        Record: func(rec []byte) {
//	            line := string(rec) // copy: rec is borrowed
//	            // ...
//	        },
//	        Overflow: func(dropped int) {
//	            slog.Warn("telemetry lost", "bytes", dropped)
//	        },
//	    }),
//	    framer.WithMetrics(registry, "gps_feed"),
//	)
//
// # Overflow Policy
//
// When an incoming batch would exceed free space, the oldest buffered bytes
// are dropped first: the most recent window is always the one retained.
// Eviction is
// sized so the entire batch fits in one step: one overflow event per batch,
// never a second overflow for the same delivery. A batch larger than the
// whole buffer has its leading excess discarded before storage.
//
// # Resumable Scanning
//
// The scan position is cached between ingest cycles: a byte proven not to
// start a delimiter match is never compared again, so the total scan cost
// stays linear across arbitrarily many partial deliveries of one record.
// Records that straddle the ring's wrap boundary are staged through scratch
// space (stack for short records, pooled above 512 bytes); contiguous records
// are delivered as zero-copy views into ring storage.
//
// # Concurrency
//
// The framer runs no goroutines. One mutex guards all state, including the
// synchronous handler call: a slow handler stalls ingestion and any
// concurrent Discard or Stats call, and in exchange every Stats snapshot is
// internally consistent. Close is single-shot and idempotent, guarded by an
// atomic flag independent of the lock.
package framer
