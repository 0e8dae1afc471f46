// Package response decodes the body of an IPROTO response header whose
// status code signals a server-level failure, and maps it onto a typed Go
// error the client façade can return to callers.
package response

import (
	"fmt"

	"github.com/tinylib/msgp/msgp"

	"tntcore/internal/proto"
)

// ServerError carries the structured IPROTO status and error message the
// server attaches to a non-zero status response.
type ServerError struct {
	Status  proto.StatusCode
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("tntcore: server error (status=%#x): %s", uint32(e.Status), e.Message)
}

// DecodeError parses an error response body (a map containing at minimum
// IPROTO_ERROR) and returns a *ServerError for the given status.
func DecodeError(status proto.StatusCode, body []byte) (*ServerError, error) {
	sz, rest, err := msgp.ReadMapHeaderBytes(body)
	if err != nil {
		return nil, fmt.Errorf("response: decode error body: %w", err)
	}

	var msg string
	for i := uint32(0); i < sz; i++ {
		var key uint64
		key, rest, err = msgp.ReadUint64Bytes(rest)
		if err != nil {
			return nil, fmt.Errorf("response: decode error key: %w", err)
		}
		if key == proto.KeyError {
			msg, rest, err = msgp.ReadStringBytes(rest)
			if err != nil {
				return nil, fmt.Errorf("response: decode error message: %w", err)
			}
			continue
		}
		rest, err = msgp.Skip(rest)
		if err != nil {
			return nil, fmt.Errorf("response: skip error field: %w", err)
		}
	}
	return &ServerError{Status: status, Message: msg}, nil
}
