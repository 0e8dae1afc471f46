// Package protocol implements the sans-I/O connection core: a byte-in/
// byte-out state machine with no sockets, goroutines, or timers, so it can
// be driven deterministically with literal byte slices in tests. Callers
// (the sender and receiver workers in the root package) own all I/O and
// feed/drain this machine under their own synchronization.
package protocol

import (
	"fmt"
	"sync"

	"tntcore/internal/codec"
	"tntcore/internal/proto"
	"tntcore/internal/response"
	"tntcore/internal/wire"
)

// ReadState tells the receiver worker how many bytes to read next and how
// to interpret them.
type ReadState int

const (
	// ReadLength means the next read must be exactly wire.LengthPrefixSize
	// bytes, the frame's length prefix.
	ReadLength ReadState = iota
	// ReadFrame means the next read must be exactly the frame body length
	// most recently decoded from a length prefix.
	ReadFrame
)

type pendingEntry struct {
	reqType proto.RequestType
}

type completedEntry struct {
	status proto.StatusCode
	body   []byte
}

// Machine is the sans-I/O protocol core described in package protocol's
// doc comment. It is safe for concurrent use: the sender, receiver, and
// client façade all call into it from different goroutines.
type Machine struct {
	mu sync.Mutex

	syncs syncRegistry

	frontBuf []byte
	backBuf  []byte

	readState ReadState
	readLen   int

	pending   map[uint64]pendingEntry
	completed map[uint64]completedEntry
}

// New returns a Machine ready to accept requests. The read FSM starts in
// ReadLength, awaiting the first frame's length prefix.
func New() *Machine {
	return &Machine{
		readState: ReadLength,
		readLen:   wire.LengthPrefixSize,
		pending:   make(map[uint64]pendingEntry),
		completed: make(map[uint64]completedEntry),
	}
}

// SendRequest allocates a sync tag, encodes req's header and body, and
// appends the framed bytes to the outgoing buffer. It never fails on a
// healthy request; errors come only from encoding (malformed body data,
// or a payload larger than proto.MaxFrameSize).
func (m *Machine) SendRequest(req codec.Request) (uint64, error) {
	sync := m.syncs.next()

	payload, err := codec.EncodeMessage(req, sync)
	if err != nil {
		return 0, fmt.Errorf("protocol: send request: %w", err)
	}
	frame, err := wire.Encode(payload)
	if err != nil {
		return 0, fmt.Errorf("protocol: send request: %w", err)
	}

	m.mu.Lock()
	m.backBuf = append(m.backBuf, frame...)
	m.pending[sync] = pendingEntry{reqType: req.Type()}
	m.mu.Unlock()

	return sync, nil
}

// ReadyOutgoingLen reports how many bytes are waiting to be drained,
// without draining them.
func (m *Machine) ReadyOutgoingLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.backBuf)
}

// DrainOutgoing swaps the accumulating buffer for the previous, now-spare
// one and returns the full former contents. The caller must write every
// byte of the result before calling DrainOutgoing again; the returned
// slice's backing array is reused as the next drain's spare buffer.
func (m *Machine) DrainOutgoing() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.backBuf) == 0 {
		return nil
	}
	m.frontBuf, m.backBuf = m.backBuf, m.frontBuf[:0]
	return m.frontBuf
}

// NextRead reports how many bytes the receiver should read next and how to
// interpret them once read.
func (m *Machine) NextRead() (state ReadState, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readState, m.readLen
}

// ConsumeLength decodes a just-read length prefix and transitions the read
// FSM to ReadFrame. A zero length is a fatal protocol error.
func (m *Machine) ConsumeLength(data []byte) error {
	if len(data) != wire.LengthPrefixSize {
		return fmt.Errorf("protocol: length prefix is %d bytes, want %d", len(data), wire.LengthPrefixSize)
	}
	var hdr [wire.LengthPrefixSize]byte
	copy(hdr[:], data)
	n := wire.DecodeHeader(hdr)
	if n == 0 {
		return fmt.Errorf("protocol: zero-length frame")
	}
	if n > proto.MaxFrameSize {
		return fmt.Errorf("protocol: frame length %d exceeds max %d", n, proto.MaxFrameSize)
	}

	m.mu.Lock()
	m.readState = ReadFrame
	m.readLen = int(n)
	m.mu.Unlock()
	return nil
}

// ProcessIncoming parses a just-read frame body and reports whether it
// matched a sync allocated by SendRequest. A matched response's decoded
// status and body are stashed for TakeResponse; an unmatched one is
// discarded by the caller (who should log it) since nothing will ever call
// TakeResponse for it. Either way the read FSM returns to ReadLength.
func (m *Machine) ProcessIncoming(frame []byte) (sync uint64, matched bool, err error) {
	sync, status, body, err := codec.DecodeHeader(frame)
	if err != nil {
		return 0, false, fmt.Errorf("protocol: process incoming: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.readState = ReadLength
	m.readLen = wire.LengthPrefixSize

	if _, ok := m.pending[sync]; !ok {
		return sync, false, nil
	}
	delete(m.pending, sync)
	m.completed[sync] = completedEntry{status: status, body: body}
	return sync, true, nil
}

// TakeResponse decodes the response stored for sync into resp (which may be
// nil for zero-body responses like Ping) and removes the entry. If the
// response carried a non-zero IPROTO status, it returns a *response.ServerError
// instead of decoding into resp.
func (m *Machine) TakeResponse(sync uint64, resp codec.Response) error {
	m.mu.Lock()
	entry, ok := m.completed[sync]
	if ok {
		delete(m.completed, sync)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("protocol: no completed response for sync %d", sync)
	}
	if entry.status.IsError() {
		se, err := response.DecodeError(entry.status, entry.body)
		if err != nil {
			return fmt.Errorf("protocol: decode server error for sync %d: %w", sync, err)
		}
		return se
	}
	if resp == nil {
		return nil
	}
	if err := resp.Decode(entry.body); err != nil {
		return fmt.Errorf("protocol: decode response for sync %d: %w", sync, err)
	}
	return nil
}

// CancelPending removes sync from both the pending and completed tables.
// Called when a caller abandons a send (context cancellation or timeout)
// so a response that arrives later finds no entry and is silently dropped,
// per the cancellation-safety property.
func (m *Machine) CancelPending(sync uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, sync)
	delete(m.completed, sync)
}

// DrainPendingSyncs removes and returns every sync tag still awaiting a
// response, for the caller to fan a close error out to. Called exactly
// once, when the connection transitions to a closed state.
func (m *Machine) DrainPendingSyncs() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	syncs := make([]uint64, 0, len(m.pending))
	for s := range m.pending {
		syncs = append(syncs, s)
	}
	m.pending = make(map[uint64]pendingEntry)
	m.completed = make(map[uint64]completedEntry)
	return syncs
}
