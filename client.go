package tntcore

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/xmidt-org/eventor"
	"go.uber.org/zap"

	"tntcore/internal/auth"
	"tntcore/internal/codec"
	"tntcore/internal/proto"
	"tntcore/internal/protocol"
)

// Client is a single multiplexed IPROTO connection. Every exported method
// is safe to call concurrently from any number of goroutines; each call
// allocates its own sync tag and waits on its own result channel, so
// callers never block on one another except for the shared write to the
// outgoing buffer.
type Client struct {
	conn    net.Conn
	machine *protocol.Machine
	sender  *sender
	recv    *receiver
	logger  *zap.Logger

	life lifecycle
	stop chan struct{}

	waitersMu sync.Mutex
	waiters   map[uint64]chan error

	closeListeners eventor.Eventor[func(error)]
}

// Connect dials addr and performs the greeting, with no authentication.
// Equivalent to ConnectWithConfig with no options.
func Connect(ctx context.Context, addr string) (*Client, error) {
	return ConnectWithConfig(ctx, addr)
}

// ConnectWithConfig dials addr, reads the 128-byte greeting, optionally
// authenticates with chap-sha1 using the credentials from opts, and starts
// the sender and receiver workers. The returned Client is ready for use.
func ConnectWithConfig(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o.apply(cfg)
	}

	dialer := &net.Dialer{Timeout: cfg.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &TcpError{Op: "dial", Err: err}
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	greeting := make([]byte, proto.GreetingSize)
	if _, err := io.ReadFull(conn, greeting); err != nil {
		conn.Close()
		return nil, &ProtocolError{Msg: "read greeting", Err: err}
	}
	_ = conn.SetDeadline(time.Time{})

	c := &Client{
		conn:    conn,
		machine: protocol.New(),
		logger:  cfg.logger,
		stop:    make(chan struct{}),
		waiters: make(map[uint64]chan error),
	}
	c.sender = newSender(conn, c.machine, c.logger)
	c.recv = newReceiver(conn, c.machine, c.logger, c.wakeWaiter)

	if cfg.hasCreds {
		if err := c.authenticate(ctx, greeting, cfg.user, cfg.pass); err != nil {
			conn.Close()
			return nil, err
		}
	}

	go c.sender.run(c.stop, c.fail)
	go c.recv.run(c.fail)

	return c, nil
}

// authenticate performs a single synchronous Auth round-trip directly over
// conn, before the sender/receiver workers exist. The greeting is not
// length-prefixed like a normal frame, so it is handled here rather than
// inside the machine's steady-state read FSM.
func (c *Client) authenticate(ctx context.Context, greeting []byte, user, pass string) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetDeadline(deadline)
		defer c.conn.SetDeadline(time.Time{})
	}

	salt, err := auth.DecodeSalt(greeting)
	if err != nil {
		return &ProtocolError{Msg: "decode greeting salt", Err: err}
	}
	scramble, err := auth.Scramble(pass, salt)
	if err != nil {
		return &ProtocolError{Msg: "compute scramble", Err: err}
	}

	sync, err := c.machine.SendRequest(codec.AuthRequest{Username: user, Scramble: scramble})
	if err != nil {
		return fmt.Errorf("tntcore: authenticate: %w", err)
	}
	frame := c.machine.DrainOutgoing()
	if _, err := c.conn.Write(frame); err != nil {
		return &TcpError{Op: "write auth request", Err: err}
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(c.conn, lenBuf[:]); err != nil {
		return &TcpError{Op: "read auth response length", Err: err}
	}
	if err := c.machine.ConsumeLength(lenBuf[:]); err != nil {
		return &ProtocolError{Msg: "auth response length", Err: err}
	}
	_, n := c.machine.NextRead()
	body := make([]byte, n)
	if _, err := io.ReadFull(c.conn, body); err != nil {
		return &TcpError{Op: "read auth response body", Err: err}
	}
	respSync, matched, err := c.machine.ProcessIncoming(body)
	if err != nil {
		return &ProtocolError{Msg: "decode auth response", Err: err}
	}
	if !matched || respSync != sync {
		return &ProtocolError{Msg: "auth response sync mismatch"}
	}
	if err := c.machine.TakeResponse(sync, new(codec.AuthResponse)); err != nil {
		return fmt.Errorf("tntcore: authenticate: %w", err)
	}
	return nil
}

// Ping sends an IPROTO_PING and waits for the empty success response.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.roundTrip(ctx, codec.PingRequest{}, new(codec.PingResponse))
	return err
}

// Call invokes a stored Lua procedure by name with a tuple of positional
// arguments, returning the single result tuple it produced (nil if it
// returned nothing).
func (c *Client) Call(ctx context.Context, name string, args []any) ([]any, error) {
	resp := new(codec.TupleResult)
	if _, err := c.roundTrip(ctx, codec.CallRequest{Name: name, Args: args}, resp); err != nil {
		return nil, err
	}
	return resp.Tuple, nil
}

// Eval evaluates a Lua expression on the server with a tuple of positional
// arguments, returning the single result tuple it produced (nil if it
// returned nothing).
func (c *Client) Eval(ctx context.Context, expr string, args []any) ([]any, error) {
	resp := new(codec.TupleResult)
	if _, err := c.roundTrip(ctx, codec.EvalRequest{Expr: expr, Args: args}, resp); err != nil {
		return nil, err
	}
	return resp.Tuple, nil
}

// Execute runs a SQL statement with positional bind parameters and an
// optional row limit (nil means unlimited), returning column names and
// rows. Limit is enforced client-side against the rows the server sends;
// it is never encoded onto the wire.
func (c *Client) Execute(ctx context.Context, sql string, bind []any, limit *uint64) ([]string, [][]any, error) {
	resp := &codec.ExecuteResult{Limit: limit}
	req := codec.ExecuteRequest{SQL: sql, Bind: bind}
	if _, err := c.roundTrip(ctx, req, resp); err != nil {
		return nil, nil, err
	}
	return resp.Columns, resp.Rows, nil
}

// OnClose registers a listener invoked exactly once, from the goroutine
// that performs the close (Close's caller, or the worker that hit the
// failure), when the connection transitions to ClosedWithError or
// ClosedManually. It returns a function that cancels the
// registration.
func (c *Client) OnClose(listener func(error)) func() {
	return c.closeListeners.Add(listener)
}

// Close transitions the connection to ClosedManually, stops both workers,
// and fans ErrClosed out to every in-flight call. Calling Close more than
// once, or after a worker has already closed the connection with an error,
// is a no-op.
func (c *Client) Close() error {
	if !c.life.closeManually() {
		return nil
	}
	return c.shutdown(ErrClosed)
}

// fail is the onFatal callback handed to both workers. The first worker to
// observe a failure wins the race to close the connection; the other's
// call becomes a no-op.
func (c *Client) fail(err error) {
	if !c.life.closeWithError(err) {
		return
	}
	_ = c.shutdown(err)
}

func (c *Client) shutdown(cause error) error {
	close(c.stop)
	c.sender.wakeUp()
	err := c.conn.Close()

	for _, sync := range c.machine.DrainPendingSyncs() {
		c.wakeWaiterWithErr(sync, cause)
	}
	c.closeListeners.Visit(func(l func(error)) { l(cause) })

	if err != nil {
		return &TcpError{Op: "close", Err: err}
	}
	return nil
}

// roundTrip sends req, waits for either its response or ctx's
// cancellation, and decodes into resp. On cancellation it cancels the
// pending sync so a late response is silently dropped, per the
// cancellation-safety guarantee.
func (c *Client) roundTrip(ctx context.Context, req codec.Request, resp codec.Response) (uint64, error) {
	if cause := c.life.closedErr(); cause != nil {
		return 0, cause
	}

	sync, err := c.machine.SendRequest(req)
	if err != nil {
		return 0, fmt.Errorf("tntcore: %s: %w", req.Type(), err)
	}
	ch := c.registerWaiter(sync)
	c.sender.wakeUp()

	select {
	case err := <-ch:
		if err != nil {
			return sync, err
		}
		return sync, c.machine.TakeResponse(sync, resp)
	case <-ctx.Done():
		c.unregisterWaiter(sync)
		c.machine.CancelPending(sync)
		return sync, ctx.Err()
	}
}

func (c *Client) registerWaiter(sync uint64) chan error {
	ch := make(chan error, 1)
	c.waitersMu.Lock()
	c.waiters[sync] = ch
	c.waitersMu.Unlock()
	return ch
}

func (c *Client) unregisterWaiter(sync uint64) {
	c.waitersMu.Lock()
	delete(c.waiters, sync)
	c.waitersMu.Unlock()
}

// wakeWaiter is the receiver's onMatch callback: it signals the goroutine
// blocked in roundTrip that sync's response is ready to be taken.
func (c *Client) wakeWaiter(sync uint64) {
	c.waitersMu.Lock()
	ch, ok := c.waiters[sync]
	if ok {
		delete(c.waiters, sync)
	}
	c.waitersMu.Unlock()
	if ok {
		ch <- nil
	}
}

// wakeWaiterWithErr fans a fatal close error out to sync's waiter, for
// every sync still pending when the connection closes.
func (c *Client) wakeWaiterWithErr(sync uint64, cause error) {
	c.waitersMu.Lock()
	ch, ok := c.waiters[sync]
	if ok {
		delete(c.waiters, sync)
	}
	c.waitersMu.Unlock()
	if ok {
		ch <- cause
	}
}
