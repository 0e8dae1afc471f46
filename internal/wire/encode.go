// Package wire implements IPROTO frame delimiting: the 4-byte big-endian
// length prefix that wraps every message after the greeting. It knows
// nothing about MessagePack; the bytes it hands back are the header+body
// payload for internal/protocol and internal/codec to decode.
package wire

import (
	"encoding/binary"
	"fmt"

	"tntcore/internal/proto"
)

// LengthPrefixSize is the width in bytes of the frame length prefix.
const LengthPrefixSize = 4

// Encode builds an IPROTO frame: a 4-byte big-endian length followed by
// payload (an already-MessagePack-encoded header+body pair).
func Encode(payload []byte) ([]byte, error) {
	if uint(len(payload)) > uint(proto.MaxFrameSize) {
		return nil, fmt.Errorf("wire: payload length %d exceeds max frame size %d", len(payload), proto.MaxFrameSize)
	}
	frame := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(frame[:LengthPrefixSize], uint32(len(payload))) //nolint:gosec // G115: bounded by the check above
	copy(frame[LengthPrefixSize:], payload)
	return frame, nil
}

// DecodeHeader parses the 4-byte big-endian frame length prefix.
func DecodeHeader(data [LengthPrefixSize]byte) uint32 {
	return binary.BigEndian.Uint32(data[:])
}
