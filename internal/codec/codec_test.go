package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinylib/msgp/msgp"

	"tntcore/internal/proto"
)

func TestEncodeMessageHeader(t *testing.T) {
	t.Parallel()
	payload, err := EncodeMessage(PingRequest{}, 7)
	require.NoError(t, err)

	sync, status, body, err := DecodeHeader(payload)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), sync)
	assert.Equal(t, proto.StatusCode(proto.RequestPing), status, "a request header's KeyCode carries the request type, not a status")
	assert.Equal(t, msgp.AppendMapHeader(nil, 0), body, "a Ping body is an empty map")
}

func TestPingRoundTrip(t *testing.T) {
	t.Parallel()
	payload, err := EncodeMessage(PingRequest{}, 1)
	require.NoError(t, err)

	_, _, body, err := DecodeHeader(payload)
	require.NoError(t, err)

	var resp PingResponse
	require.NoError(t, resp.Decode(body))
}

func TestCallRoundTrip(t *testing.T) {
	t.Parallel()
	req := CallRequest{Name: "box.info", Args: []any{int64(1), "two"}}
	payload, err := EncodeMessage(req, 3)
	require.NoError(t, err)

	sync, _, body, err := DecodeHeader(payload)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), sync)

	// simulate a server echoing back a one-element IPROTO_DATA tuple, the
	// shape a scalar Lua return produces.
	var respBody []byte
	respBody = msgp.AppendMapHeader(respBody, 1)
	respBody = msgp.AppendUint64(respBody, proto.KeyData)
	respBody = msgp.AppendArrayHeader(respBody, 1)
	respBody = msgp.AppendString(respBody, "ok")

	var result TupleResult
	require.NoError(t, result.Decode(respBody))
	require.Len(t, result.Tuple, 1)
	assert.Equal(t, "ok", result.Tuple[0])
	_ = body
}

func TestExecuteDoesNotEncodeLimitOnWire(t *testing.T) {
	t.Parallel()
	limit := uint64(10)
	withLimit := ExecuteRequest{SQL: "SELECT * FROM t WHERE id = ?", Bind: []any{int64(6002)}, Limit: &limit}
	withoutLimit := ExecuteRequest{SQL: "SELECT * FROM t WHERE id = ?", Bind: []any{int64(6002)}}

	withLimitPayload, err := EncodeMessage(withLimit, 9)
	require.NoError(t, err)
	withoutLimitPayload, err := EncodeMessage(withoutLimit, 9)
	require.NoError(t, err)

	assert.Equal(t, withoutLimitPayload, withLimitPayload, "Limit must never change the encoded request body")
}

func TestExecuteResultCapsRowsToLimit(t *testing.T) {
	t.Parallel()
	var body []byte
	body = msgp.AppendMapHeader(body, 1)
	body = msgp.AppendUint64(body, proto.KeyData)
	body = msgp.AppendArrayHeader(body, 3)
	for _, v := range []int64{1, 2, 3} {
		body = msgp.AppendArrayHeader(body, 1)
		body = msgp.AppendInt64(body, v)
	}

	limit := uint64(2)
	result := ExecuteResult{Limit: &limit}
	require.NoError(t, result.Decode(body))
	require.Len(t, result.Rows, 2)
	assert.Equal(t, int64(1), result.Rows[0][0])
	assert.Equal(t, int64(2), result.Rows[1][0])
}

func TestAuthRequestEncodesScramble(t *testing.T) {
	t.Parallel()
	req := AuthRequest{Username: "guest", Scramble: []byte{1, 2, 3}}
	payload, err := EncodeMessage(req, 1)
	require.NoError(t, err)
	require.NotEmpty(t, payload)
	assert.True(t, bytes.Contains(payload, msgp.AppendBytes(nil, req.Scramble)), "payload must carry the scramble as a bin value")
}
