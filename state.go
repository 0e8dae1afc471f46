package tntcore

import "sync"

// connState is the three-variant connection state from the data model:
// Alive, ClosedManually, or ClosedWithError. Transitions are monotone.
type connState int32

const (
	stateAlive connState = iota
	stateClosedManually
	stateClosedWithError
)

// lifecycle guards the connection's close transition. Exactly one of
// closeManually or closeWithError performs the actual transition; later
// calls are no-ops, which is what makes both workers and Close able to
// race to close the connection safely.
type lifecycle struct {
	mu    sync.Mutex
	state connState
	cause error
}

// snapshot returns the current state and, if closed with an error, its
// cause.
func (l *lifecycle) snapshot() (connState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state, l.cause
}

// isAlive reports whether the connection can still accept new sends.
func (l *lifecycle) isAlive() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state == stateAlive
}

// closeManually transitions Alive to ClosedManually. Returns true the
// first time it is called; subsequent calls (or calls after a worker
// already closed with an error) are no-ops.
func (l *lifecycle) closeManually() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != stateAlive {
		return false
	}
	l.state = stateClosedManually
	return true
}

// closeWithError transitions Alive to ClosedWithError(cause). Returns true
// the first time it is called for this connection.
func (l *lifecycle) closeWithError(cause error) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != stateAlive {
		return false
	}
	l.state = stateClosedWithError
	l.cause = cause
	return true
}

// closedErr returns the error a caller should see for send() calls
// observing a non-Alive state.
func (l *lifecycle) closedErr() error {
	state, cause := l.snapshot()
	switch state {
	case stateClosedWithError:
		return cause
	case stateClosedManually:
		return ErrClosed
	default:
		return nil
	}
}
