package protocol

import "sync/atomic"

// syncRegistry allocates monotonically increasing sync tags, starting at 1.
// Allocation is its only mutation; it holds no notion of which syncs are
// still in flight.
type syncRegistry struct {
	counter atomic.Uint64
}

// next returns the next unique sync tag for this connection's lifetime.
func (r *syncRegistry) next() uint64 {
	return r.counter.Add(1)
}
