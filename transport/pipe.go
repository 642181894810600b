package transport

import (
	"sync"

	"github.com/c360/serialframe/errors"
)

// Pipe is a thread-safe in-memory Transport: producers Write byte chunks in,
// consumers drain them through the Source side. Every concrete transport in
// this module stages received bytes through a Pipe; it is also handy on its
// own in tests and for feeding a framer from arbitrary code.
//
// The staging queue grows as needed; the bounded-memory guarantee lives in
// the framer's ring, not here. Storage is compacted whenever the queue
// drains.
type Pipe struct {
	mu     sync.Mutex
	buf    []byte
	start  int
	notify func()
	closed bool
}

// NewPipe creates an empty pipe.
func NewPipe() *Pipe {
	return &Pipe{}
}

// Write appends b to the staging queue and fires the subscriber. The
// callback runs outside the pipe lock so it may re-enter Read or Available.
func (p *Pipe) Write(b []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, errors.WrapInvalid(errors.ErrClosed, "Pipe", "Write", "closed check")
	}
	p.buf = append(p.buf, b...)
	fn := p.notify
	p.mu.Unlock()

	if fn != nil {
		fn()
	}
	return len(b), nil
}

// Available returns the number of staged bytes.
func (p *Pipe) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buf) - p.start
}

// Read drains up to len(q) staged bytes into q. A zero count with nil error
// means the queue is momentarily empty.
func (p *Pipe) Read(q []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := copy(q, p.buf[p.start:])
	p.start += n
	if p.start == len(p.buf) {
		// Drained: reuse the backing array.
		p.buf = p.buf[:0]
		p.start = 0
	}
	return n, nil
}

// Subscribe registers the data-ready callback, replacing any previous one.
func (p *Pipe) Subscribe(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notify = fn
}

// Close marks the pipe closed. Staged bytes remain readable; further writes
// fail. Close is idempotent.
func (p *Pipe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.notify = nil
	return nil
}
