// Package codec builds and parses the MessagePack header and body of each
// IPROTO request/response kind the connection core supports (Ping, Auth,
// Call, Eval, Execute). It is the core's one opaque encoder/decoder
// boundary: internal/protocol depends only on the Request and Response
// interfaces below, never on a concrete message type.
package codec

import (
	"fmt"

	"github.com/tinylib/msgp/msgp"

	"tntcore/internal/proto"
)

// Request is the encoder contract the protocol state machine holds a
// request through: a wire request type and an appender for its body map.
type Request interface {
	Type() proto.RequestType
	AppendBody(b []byte) ([]byte, error)
}

// Response is the decoder contract for a successful response body. Decode
// receives the IPROTO body map bytes with the header already stripped.
type Response interface {
	Decode(body []byte) error
}

// AppendHeader appends a request header map {IPROTO_CODE, IPROTO_SYNC} to b.
func AppendHeader(b []byte, code proto.RequestType, sync uint64) []byte {
	b = msgp.AppendMapHeader(b, 2)
	b = msgp.AppendUint64(b, proto.KeyCode)
	b = msgp.AppendUint64(b, uint64(code))
	b = msgp.AppendUint64(b, proto.KeySync)
	b = msgp.AppendUint64(b, sync)
	return b
}

// EncodeMessage builds the full header+body MessagePack payload for req,
// ready to be handed to the wire package for length-prefixed framing.
func EncodeMessage(req Request, sync uint64) ([]byte, error) {
	b := AppendHeader(nil, req.Type(), sync)
	b, err := req.AppendBody(b)
	if err != nil {
		return nil, fmt.Errorf("codec: encode %s body: %w", req.Type(), err)
	}
	return b, nil
}

// DecodeHeader parses the response header map and returns the sync tag,
// status code, and the leftover bytes (the body map).
func DecodeHeader(payload []byte) (sync uint64, status proto.StatusCode, body []byte, err error) {
	sz, rest, err := msgp.ReadMapHeaderBytes(payload)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("codec: decode header: %w", err)
	}
	for i := uint32(0); i < sz; i++ {
		var key uint64
		key, rest, err = msgp.ReadUint64Bytes(rest)
		if err != nil {
			return 0, 0, nil, fmt.Errorf("codec: decode header key: %w", err)
		}
		switch key {
		case proto.KeyCode:
			var code uint64
			code, rest, err = msgp.ReadUint64Bytes(rest)
			status = proto.StatusCode(code)
		case proto.KeySync:
			sync, rest, err = msgp.ReadUint64Bytes(rest)
		default:
			rest, err = msgp.Skip(rest)
		}
		if err != nil {
			return 0, 0, nil, fmt.Errorf("codec: decode header field %#x: %w", key, err)
		}
	}
	return sync, status, rest, nil
}

// appendTuple appends a MessagePack array built from a Go tuple of scalar
// values (the args/bind parameters of Call, Eval and Execute).
func appendTuple(b []byte, args []any) ([]byte, error) {
	b = msgp.AppendArrayHeader(b, uint32(len(args)))
	var err error
	for _, a := range args {
		b, err = msgp.AppendIntf(b, a)
		if err != nil {
			return nil, fmt.Errorf("codec: encode tuple element %v: %w", a, err)
		}
	}
	return b, nil
}

// decodeTuple decodes a MessagePack array of scalar values into a Go slice.
func decodeTuple(body []byte) ([]any, []byte, error) {
	n, rest, err := msgp.ReadArrayHeaderBytes(body)
	if err != nil {
		return nil, nil, fmt.Errorf("codec: decode tuple header: %w", err)
	}
	out := make([]any, n)
	for i := uint32(0); i < n; i++ {
		var v any
		v, rest, err = msgp.ReadIntfBytes(rest)
		if err != nil {
			return nil, nil, fmt.Errorf("codec: decode tuple element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, rest, nil
}
