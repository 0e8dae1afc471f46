package codec

import "github.com/tinylib/msgp/msgp"
import "tntcore/internal/proto"

// PingRequest carries no fields; the body is an empty map.
type PingRequest struct{}

func (PingRequest) Type() proto.RequestType { return proto.RequestPing }

func (PingRequest) AppendBody(b []byte) ([]byte, error) {
	return msgp.AppendMapHeader(b, 0), nil
}

// PingResponse is empty on success.
type PingResponse struct{}

func (*PingResponse) Decode([]byte) error { return nil }
