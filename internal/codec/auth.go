package codec

import (
	"github.com/tinylib/msgp/msgp"

	"tntcore/internal/auth"
	"tntcore/internal/proto"
)

// AuthRequest is the greeting-phase authentication request: the username
// plus a two-element tuple {method, scramble}.
type AuthRequest struct {
	Username string
	Scramble []byte
}

func (AuthRequest) Type() proto.RequestType { return proto.RequestAuth }

func (r AuthRequest) AppendBody(b []byte) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 2)
	b = msgp.AppendUint64(b, proto.KeyUsername)
	b = msgp.AppendString(b, r.Username)
	b = msgp.AppendUint64(b, proto.KeyTuple)
	b = msgp.AppendArrayHeader(b, 2)
	b = msgp.AppendString(b, auth.Method)
	b = msgp.AppendBytes(b, r.Scramble)
	return b, nil
}

// AuthResponse is empty on success.
type AuthResponse struct{}

func (*AuthResponse) Decode([]byte) error { return nil }
