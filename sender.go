package tntcore

import (
	"net"

	"github.com/sagernet/sing/common/bufio"
	"go.uber.org/zap"

	"tntcore/internal/protocol"
)

// sender owns the write half of the connection: it drains frames the
// machine has buffered and writes them to conn, waking whenever a new
// send() call appends to the buffer. Once Connect has finished the
// greeting and authentication, it is the only goroutine that calls
// conn.Write.
type sender struct {
	conn    net.Conn
	machine *protocol.Machine
	wake    chan struct{}
	done    chan struct{}
	logger  *zap.Logger

	bw bufio.VectorisedWriter
}

func newSender(conn net.Conn, m *protocol.Machine, logger *zap.Logger) *sender {
	bw, _ := bufio.CreateVectorisedWriter(conn)
	return &sender{
		conn:    conn,
		machine: m,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		logger:  logger,
		bw:      bw,
	}
}

// wakeUp signals the sender to check for new outgoing bytes. Safe to call
// from any goroutine; never blocks.
func (s *sender) wakeUp() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// run drains and writes frames until stop is closed or a write fails, in
// which case it reports the failure via onFatal and returns.
func (s *sender) run(stop <-chan struct{}, onFatal func(error)) {
	defer close(s.done)
	for {
		for {
			frame := s.machine.DrainOutgoing()
			if frame == nil {
				break
			}
			if err := s.write(frame); err != nil {
				onFatal(&TcpError{Op: "write", Err: err})
				return
			}
		}
		select {
		case <-stop:
			return
		case <-s.wake:
		}
	}
}

func (s *sender) write(frame []byte) error {
	if s.logger.Core().Enabled(zap.DebugLevel) {
		s.logger.Debug("tntcore: wire write", zap.Int("bytes", len(frame)), zap.Binary("frame", frame))
	}
	if s.bw != nil {
		_, err := bufio.WriteVectorised(s.bw, [][]byte{frame})
		return err
	}
	_, err := s.conn.Write(frame)
	return err
}
