package tntcore

import (
	"io"
	"net"

	"go.uber.org/zap"

	"tntcore/internal/protocol"
)

// receiver owns the read half of the connection: it repeatedly asks the
// machine how many bytes to read next and how to interpret them, reads
// exactly that many off conn, and feeds them back in. It is the only
// goroutine that calls conn.Read once Connect has consumed the greeting
// and, when credentials are set, the auth response.
type receiver struct {
	conn    net.Conn
	machine *protocol.Machine
	logger  *zap.Logger

	// onMatch is invoked (from this goroutine) every time a response frame
	// matches a sync tag the caller allocated with send(), so the caller
	// can wake whichever goroutine is waiting on that tag.
	onMatch func(sync uint64)
}

func newReceiver(conn net.Conn, m *protocol.Machine, logger *zap.Logger, onMatch func(uint64)) *receiver {
	return &receiver{conn: conn, machine: m, logger: logger, onMatch: onMatch}
}

// run reads frames until a read or protocol error occurs, then reports the
// failure via onFatal and returns. The caller stops it by closing conn,
// which unblocks the pending Read with an error.
func (r *receiver) run(onFatal func(error)) {
	var lenBuf [4]byte
	for {
		state, n := r.machine.NextRead()

		// A frame body is retained (by reference) in the machine's
		// completed-response table until TakeResponse runs, so it needs
		// its own allocation; the length prefix is decoded and discarded
		// immediately and can reuse a fixed buffer.
		var chunk []byte
		if state == protocol.ReadLength {
			chunk = lenBuf[:n]
		} else {
			chunk = make([]byte, n)
		}

		if _, err := io.ReadFull(r.conn, chunk); err != nil {
			onFatal(&TcpError{Op: "read", Err: err})
			return
		}

		if err := r.step(state, chunk); err != nil {
			onFatal(&ProtocolError{Msg: "receiver", Err: err})
			return
		}
	}
}

func (r *receiver) step(state protocol.ReadState, chunk []byte) error {
	if state == protocol.ReadLength {
		return r.machine.ConsumeLength(chunk)
	}

	sync, matched, err := r.machine.ProcessIncoming(chunk)
	if err != nil {
		return err
	}
	if !matched {
		r.logger.Warn("tntcore: response with no registered waiter", zap.Uint64("sync", sync))
		return nil
	}
	r.onMatch(sync)
	return nil
}
