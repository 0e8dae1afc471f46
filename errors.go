package tntcore

import "errors"

// ErrClosed is returned by Ping, Call, Eval and Execute when called on a
// connection that Close has already closed, and is fanned out by Close to
// every call still in flight. After a worker failure those calls return
// the worker's error instead.
var ErrClosed = errors.New("tntcore: connection closed")

// ErrExpired is returned by Timeout when its deadline fires before the
// wrapped operation completes.
var ErrExpired = errors.New("tntcore: deadline expired")

// TcpError wraps a socket-level failure observed by a worker. It is always
// fatal to the connection.
type TcpError struct {
	Op  string
	Err error
}

func (e *TcpError) Error() string { return "tntcore: tcp: " + e.Op + ": " + e.Err.Error() }
func (e *TcpError) Unwrap() error { return e.Err }

// ProtocolError wraps a framing or greeting failure (malformed greeting,
// zero-length frame, header decode failure). It is always fatal to the
// connection.
type ProtocolError struct {
	Msg string
	Err error
}

func (e *ProtocolError) Error() string {
	if e.Err == nil {
		return "tntcore: protocol: " + e.Msg
	}
	return "tntcore: protocol: " + e.Msg + ": " + e.Err.Error()
}

func (e *ProtocolError) Unwrap() error { return e.Err }
