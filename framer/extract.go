package framer

import "sync"

// scratchThreshold is the record length at or below which wrap-straddling
// records are staged through a fixed stack buffer instead of the pool. A
// tunable constant, not a correctness boundary.
const scratchThreshold = 512

// scratchPool holds staging buffers for wrapped records longer than the
// stack threshold, keeping large extractions off the allocator's hot path.
var scratchPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, 4*scratchThreshold)
		return &b
	},
}

// emitRecord materializes the length leading bytes of the ring and delivers
// them to the handler. Contiguous records are delivered as a borrowed view
// straight into ring storage; wrapped records are staged into scratch space
// first. Called with the framer lock held.
func (f *Framer) emitRecord(length int) {
	if f.handler == nil {
		return
	}

	if view, ok := f.ring.view(0, length); ok {
		f.deliver(view)
		return
	}

	if length <= scratchThreshold {
		var scratch [scratchThreshold]byte
		staged := scratch[:length]
		f.ring.copyOut(staged, 0)
		f.deliver(staged)
		return
	}

	bp := scratchPool.Get().(*[]byte)
	if cap(*bp) < length {
		*bp = make([]byte, length)
	}
	staged := (*bp)[:length]
	f.ring.copyOut(staged, 0)
	f.deliver(staged)
	scratchPool.Put(bp)
}

// deliver invokes the record handler, isolating panics.
func (f *Framer) deliver(record []byte) {
	defer f.recoverHandler("record")
	f.handler.OnRecord(record)
}
