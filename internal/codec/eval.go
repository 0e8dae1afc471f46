package codec

import (
	"github.com/tinylib/msgp/msgp"

	"tntcore/internal/proto"
)

// EvalRequest evaluates a Lua expression on the server with a tuple of args.
type EvalRequest struct {
	Expr string
	Args []any
}

func (EvalRequest) Type() proto.RequestType { return proto.RequestEval }

func (r EvalRequest) AppendBody(b []byte) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 2)
	b = msgp.AppendUint64(b, proto.KeyExpr)
	b = msgp.AppendString(b, r.Expr)
	b = msgp.AppendUint64(b, proto.KeyTuple)
	return appendTuple(b, r.Args)
}
