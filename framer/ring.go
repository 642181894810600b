package framer

// ring is a fixed-capacity circular byte store addressed by head/tail/count.
// All offsets passed to its methods are logical offsets from head; the wrap
// arithmetic stays inside this type. The zero value is not usable; construct
// via newRing.
//
// Invariant: tail == (head + count) % capacity, 0 <= count <= capacity.
type ring struct {
	storage []byte
	head    int // index of the oldest unread byte
	tail    int // index of the next write position
	count   int // number of valid buffered bytes
}

func newRing(capacity int) ring {
	return ring{storage: make([]byte, capacity)}
}

func (r *ring) capacity() int {
	return len(r.storage)
}

func (r *ring) free() int {
	return len(r.storage) - r.count
}

// tailSpan returns the contiguous writable region at tail. It is empty when
// the ring is full. Writes that exceed the span must wrap: commit the span,
// then request the next one.
func (r *ring) tailSpan() []byte {
	free := r.free()
	if free == 0 {
		return nil
	}
	span := len(r.storage) - r.tail
	if span > free {
		span = free
	}
	return r.storage[r.tail : r.tail+span]
}

// commit accounts for n bytes written into the region returned by tailSpan.
func (r *ring) commit(n int) {
	r.tail = (r.tail + n) % len(r.storage)
	r.count += n
}

// drop removes the n oldest bytes.
func (r *ring) drop(n int) {
	if n > r.count {
		n = r.count
	}
	r.head = (r.head + n) % len(r.storage)
	r.count -= n
}

// byteAt returns the byte at logical offset off from head.
func (r *ring) byteAt(off int) byte {
	return r.storage[(r.head+off)%len(r.storage)]
}

// view returns a zero-copy slice of n bytes starting at logical offset off,
// or nil/false when the range straddles the wrap boundary.
func (r *ring) view(off, n int) ([]byte, bool) {
	start := (r.head + off) % len(r.storage)
	if start+n > len(r.storage) {
		return nil, false
	}
	return r.storage[start : start+n], true
}

// copyOut copies len(dst) bytes starting at logical offset off into dst,
// splitting into two contiguous sub-copies when the range wraps.
func (r *ring) copyOut(dst []byte, off int) {
	start := (r.head + off) % len(r.storage)
	n := copy(dst, r.storage[start:])
	if n < len(dst) {
		copy(dst[n:], r.storage[:len(dst)-n])
	}
}

// reset returns the ring to its initial empty state without reallocating.
func (r *ring) reset() {
	r.head = 0
	r.tail = 0
	r.count = 0
}
