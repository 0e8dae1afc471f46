package codec

import (
	"fmt"

	"github.com/tinylib/msgp/msgp"

	"tntcore/internal/proto"
)

// CallRequest invokes a stored Lua procedure by name with a tuple of args.
type CallRequest struct {
	Name string
	Args []any
}

func (CallRequest) Type() proto.RequestType { return proto.RequestCall }

func (r CallRequest) AppendBody(b []byte) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 2)
	b = msgp.AppendUint64(b, proto.KeyFunctionName)
	b = msgp.AppendString(b, r.Name)
	b = msgp.AppendUint64(b, proto.KeyTuple)
	return appendTuple(b, r.Args)
}

// TupleResult holds the IPROTO_DATA field common to Call and Eval
// responses. DATA is itself a single tuple — the array of values the
// called Lua function returned, not an array of tuples — so a scalar
// return like `return 5` produces a one-element Tuple, and a function
// that returns nothing produces a nil Tuple.
type TupleResult struct {
	Tuple []any
}

func (r *TupleResult) Decode(body []byte) error {
	sz, rest, err := msgp.ReadMapHeaderBytes(body)
	if err != nil {
		return fmt.Errorf("codec: decode call/eval result: %w", err)
	}
	for i := uint32(0); i < sz; i++ {
		var key uint64
		key, rest, err = msgp.ReadUint64Bytes(rest)
		if err != nil {
			return fmt.Errorf("codec: decode call/eval key: %w", err)
		}
		if key != proto.KeyData {
			rest, err = msgp.Skip(rest)
			if err != nil {
				return fmt.Errorf("codec: skip call/eval field: %w", err)
			}
			continue
		}
		r.Tuple, rest, err = decodeTuple(rest)
		if err != nil {
			return fmt.Errorf("codec: decode call/eval data: %w", err)
		}
	}
	return nil
}
