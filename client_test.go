package tntcore

import (
	"context"
	"encoding/base64"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinylib/msgp/msgp"

	"tntcore/internal/codec"
	"tntcore/internal/proto"
	"tntcore/internal/response"
	"tntcore/internal/wire"
)

// fakeGreeting builds a syntactically valid 128-byte IPROTO greeting
// carrying a fixed, known salt so authentication tests can compute the
// expected scramble independently.
func fakeGreeting() []byte {
	g := make([]byte, proto.GreetingSize)
	copy(g, []byte("Tarantool 2.11.0 (Binary) fake-instance-uuid\n"))

	salt := make([]byte, proto.SaltRawSize)
	for i := range salt {
		salt[i] = byte(i + 1)
	}
	b64 := base64.StdEncoding.EncodeToString(salt)
	line2 := make([]byte, proto.SaltLineSize)
	copy(line2, []byte(b64)[:proto.SaltBase64Size])
	line2[proto.SaltLineSize-1] = '\n'
	copy(g[proto.SaltLineOffset:], line2)
	return g
}

// startFakeServer opens a loopback listener and hands the first accepted
// connection to the test over the returned channel.
func startFakeServer(t *testing.T) (addr string, accepted <-chan net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	ch := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			ch <- conn
		}
	}()
	return ln.Addr().String(), ch
}

// serverReadRequest reads and decodes one framed request off conn.
func serverReadRequest(t *testing.T, conn net.Conn) (sync uint64, reqType proto.RequestType, body []byte) {
	t.Helper()
	payload, err := wire.ReadFrame(conn)
	require.NoError(t, err)
	sync, status, body, err := codec.DecodeHeader(payload)
	require.NoError(t, err)
	return sync, proto.RequestType(status), body
}

// serverWriteResponse frames and writes a response header plus whatever
// appendBody adds (nil means an empty map body, the Ping/Auth shape).
func serverWriteResponse(t *testing.T, conn net.Conn, sync uint64, status proto.StatusCode, appendBody func([]byte) []byte) {
	t.Helper()
	b := msgp.AppendMapHeader(nil, 2)
	b = msgp.AppendUint64(b, proto.KeyCode)
	b = msgp.AppendUint64(b, uint64(status))
	b = msgp.AppendUint64(b, proto.KeySync)
	b = msgp.AppendUint64(b, sync)
	if appendBody != nil {
		b = appendBody(b)
	} else {
		b = msgp.AppendMapHeader(b, 0)
	}
	frame, err := wire.Encode(b)
	require.NoError(t, err)
	_, err = conn.Write(frame)
	require.NoError(t, err)
}

func dialFake(t *testing.T, opts ...Option) (*Client, net.Conn) {
	t.Helper()
	addr, accepted := startFakeServer(t)

	serverDone := make(chan net.Conn, 1)
	go func() {
		conn := <-accepted
		_, _ = conn.Write(fakeGreeting())
		serverDone <- conn
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err := ConnectWithConfig(ctx, addr, opts...)
	require.NoError(t, err)

	srv := <-serverDone
	t.Cleanup(func() { client.Close() })
	return client, srv
}

// S1: a Ping round trip over a single frame in each direction.
func TestClientPing(t *testing.T) {
	t.Parallel()
	client, srv := dialFake(t)

	done := make(chan error, 1)
	go func() { done <- client.Ping(context.Background()) }()

	sync, reqType, _ := serverReadRequest(t, srv)
	assert.Equal(t, proto.RequestPing, reqType)
	assert.Equal(t, uint64(1), sync)
	serverWriteResponse(t, srv, sync, 0, nil)

	require.NoError(t, <-done)
}

// S2: wrapping Ping in the timeout combinator surfaces ErrExpired when the
// server never answers.
func TestClientPingTimesOut(t *testing.T) {
	t.Parallel()
	client, _ := dialFake(t)

	_, err := Timeout(context.Background(), 10*time.Millisecond, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, client.Ping(ctx)
	})
	require.ErrorIs(t, err, ErrExpired)
}

// S4: two concurrent Pings each get their own sync tag and both complete.
func TestClientConcurrentPings(t *testing.T) {
	t.Parallel()
	client, srv := dialFake(t)

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { results <- client.Ping(context.Background()) }()
	}

	seen := map[uint64]bool{}
	for i := 0; i < 2; i++ {
		sync, reqType, _ := serverReadRequest(t, srv)
		assert.Equal(t, proto.RequestPing, reqType)
		assert.False(t, seen[sync], "duplicate sync %d", sync)
		seen[sync] = true
		serverWriteResponse(t, srv, sync, 0, nil)
	}

	for i := 0; i < 2; i++ {
		require.NoError(t, <-results)
	}
	assert.Len(t, seen, 2)
}

// S5: Execute returns decoded columns and rows for a SQL select.
func TestClientExecuteSelect(t *testing.T) {
	t.Parallel()
	client, srv := dialFake(t)

	done := make(chan struct {
		cols []string
		rows [][]any
		err  error
	}, 1)
	go func() {
		cols, rows, err := client.Execute(context.Background(), "SELECT * FROM t WHERE id = ?", []any{int64(6002)}, nil)
		done <- struct {
			cols []string
			rows [][]any
			err  error
		}{cols, rows, err}
	}()

	sync, reqType, _ := serverReadRequest(t, srv)
	assert.Equal(t, proto.RequestExecute, reqType)

	serverWriteResponse(t, srv, sync, 0, func(b []byte) []byte {
		b = msgp.AppendMapHeader(b, 2)
		b = msgp.AppendUint64(b, proto.KeyMetadata)
		b = msgp.AppendArrayHeader(b, 1)
		b = msgp.AppendMapHeader(b, 1)
		b = msgp.AppendUint64(b, 0x00)
		b = msgp.AppendString(b, "id")
		b = msgp.AppendUint64(b, proto.KeyData)
		b = msgp.AppendArrayHeader(b, 1)
		b = msgp.AppendArrayHeader(b, 1)
		b = msgp.AppendInt64(b, 6002)
		return b
	})

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, []string{"id"}, res.cols)
	require.Len(t, res.rows, 1)
	assert.Equal(t, int64(6002), res.rows[0][0])
}

// S6: a server-side error response surfaces as a *response.ServerError
// carrying the server's message.
func TestClientCallServerError(t *testing.T) {
	t.Parallel()
	client, srv := dialFake(t)

	done := make(chan error, 1)
	go func() {
		_, err := client.Call(context.Background(), "unexistent_proc", nil)
		done <- err
	}()

	sync, reqType, _ := serverReadRequest(t, srv)
	assert.Equal(t, proto.RequestCall, reqType)

	const msg = "Procedure 'unexistent_proc' is not defined"
	serverWriteResponse(t, srv, sync, 0x8000|0x30, func(b []byte) []byte {
		b = msgp.AppendMapHeader(b, 1)
		b = msgp.AppendUint64(b, proto.KeyError)
		b = msgp.AppendString(b, msg)
		return b
	})

	err := <-done
	require.Error(t, err)
	var serverErr *response.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Contains(t, serverErr.Message, "not defined")
}

// Property 5: closing the connection fans an error out to every call still
// in flight.
func TestClientCloseFansOutToInFlightCalls(t *testing.T) {
	t.Parallel()
	client, _ := dialFake(t)

	done := make(chan error, 1)
	go func() { done <- client.Ping(context.Background()) }()

	// Give the Ping a moment to register its waiter before closing.
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, client.Close())

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("in-flight call was never unblocked by Close")
	}
}

func TestClientOnCloseFires(t *testing.T) {
	t.Parallel()
	client, _ := dialFake(t)

	fired := make(chan error, 1)
	client.OnClose(func(err error) { fired <- err })

	require.NoError(t, client.Close())
	select {
	case err := <-fired:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("OnClose listener was never invoked")
	}
}

func TestClientAuthenticates(t *testing.T) {
	t.Parallel()
	addr, accepted := startFakeServer(t)

	serverDone := make(chan net.Conn, 1)
	go func() {
		conn := <-accepted
		_, _ = conn.Write(fakeGreeting())
		sync, reqType, _ := serverReadRequestNoT(conn)
		if reqType == proto.RequestAuth {
			writeOKResponse(conn, sync)
		}
		serverDone <- conn
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err := ConnectWithConfig(ctx, addr, WithCredentials("guest", "secret"))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	<-serverDone
}

func serverReadRequestNoT(conn net.Conn) (uint64, proto.RequestType, []byte) {
	payload, err := wire.ReadFrame(conn)
	if err != nil {
		return 0, 0, nil
	}
	sync, status, body, err := codec.DecodeHeader(payload)
	if err != nil {
		return 0, 0, nil
	}
	return sync, proto.RequestType(status), body
}

func writeOKResponse(conn net.Conn, sync uint64) {
	b := msgp.AppendMapHeader(nil, 2)
	b = msgp.AppendUint64(b, proto.KeyCode)
	b = msgp.AppendUint64(b, 0)
	b = msgp.AppendUint64(b, proto.KeySync)
	b = msgp.AppendUint64(b, sync)
	b = msgp.AppendMapHeader(b, 0)
	frame, err := wire.Encode(b)
	if err != nil {
		return
	}
	_, _ = conn.Write(frame)
}
