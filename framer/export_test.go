package framer

// scanCursor exposes the cached scan position to tests. Deliberately
// test-only: the cursor is an internal optimization, not part of the
// contract, but its monotonicity invariants are worth pinning down.
func (f *Framer) scanCursor() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursor
}
