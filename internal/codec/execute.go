package codec

import (
	"fmt"

	"github.com/tinylib/msgp/msgp"

	"tntcore/internal/proto"
)

// ExecuteRequest runs a SQL statement with positional bind parameters and
// an optional row limit. Limit is never sent on the wire — the server has
// no IPROTO key for it. It is applied client-side by ExecuteResult during
// decode, capping how many of the server's rows are kept.
type ExecuteRequest struct {
	SQL   string
	Bind  []any
	Limit *uint64
}

func (ExecuteRequest) Type() proto.RequestType { return proto.RequestExecute }

func (r ExecuteRequest) AppendBody(b []byte) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 2)
	b = msgp.AppendUint64(b, proto.KeySQLText)
	b = msgp.AppendString(b, r.SQL)
	b = msgp.AppendUint64(b, proto.KeySQLBind)
	return appendTuple(b, r.Bind)
}

// ExecuteResult holds the decoded rows and column names of a SQL response.
// Limit, when set by the caller before Decode runs, caps the number of rows
// kept in Rows regardless of how many the server actually sent.
type ExecuteResult struct {
	Columns []string
	Rows    [][]any
	Limit   *uint64
}

func (r *ExecuteResult) Decode(body []byte) error {
	sz, rest, err := msgp.ReadMapHeaderBytes(body)
	if err != nil {
		return fmt.Errorf("codec: decode execute result: %w", err)
	}
	for i := uint32(0); i < sz; i++ {
		var key uint64
		key, rest, err = msgp.ReadUint64Bytes(rest)
		if err != nil {
			return fmt.Errorf("codec: decode execute key: %w", err)
		}
		switch key {
		case proto.KeyData:
			rest, err = r.decodeRows(rest)
		case proto.KeyMetadata:
			rest, err = r.decodeMetadata(rest)
		default:
			rest, err = msgp.Skip(rest)
		}
		if err != nil {
			return fmt.Errorf("codec: decode execute field %#x: %w", key, err)
		}
	}
	return nil
}

func (r *ExecuteResult) decodeRows(body []byte) ([]byte, error) {
	n, rest, err := msgp.ReadArrayHeaderBytes(body)
	if err != nil {
		return nil, fmt.Errorf("decode row array: %w", err)
	}
	keep := n
	if r.Limit != nil && *r.Limit < uint64(n) {
		keep = uint32(*r.Limit) //nolint:gosec // G115: bounded by n above
	}
	r.Rows = make([][]any, keep)
	for i := uint32(0); i < n; i++ {
		if i >= keep {
			rest, err = msgp.Skip(rest)
			if err != nil {
				return nil, fmt.Errorf("skip row %d: %w", i, err)
			}
			continue
		}
		var row []any
		row, rest, err = decodeTuple(rest)
		if err != nil {
			return nil, fmt.Errorf("decode row %d: %w", i, err)
		}
		r.Rows[i] = row
	}
	return rest, nil
}

func (r *ExecuteResult) decodeMetadata(body []byte) ([]byte, error) {
	n, rest, err := msgp.ReadArrayHeaderBytes(body)
	if err != nil {
		return nil, fmt.Errorf("decode metadata array: %w", err)
	}
	r.Columns = make([]string, n)
	for i := uint32(0); i < n; i++ {
		var colSz uint32
		colSz, rest, err = msgp.ReadMapHeaderBytes(rest)
		if err != nil {
			return nil, fmt.Errorf("decode column %d: %w", i, err)
		}
		for j := uint32(0); j < colSz; j++ {
			var key uint64
			key, rest, err = msgp.ReadUint64Bytes(rest)
			if err != nil {
				return nil, fmt.Errorf("decode column %d field: %w", i, err)
			}
			const fieldNameKey = 0x00 // IPROTO_FIELD_NAME within a metadata column map
			if key == fieldNameKey {
				r.Columns[i], rest, err = msgp.ReadStringBytes(rest)
			} else {
				rest, err = msgp.Skip(rest)
			}
			if err != nil {
				return nil, fmt.Errorf("decode column %d value: %w", i, err)
			}
		}
	}
	return rest, nil
}
