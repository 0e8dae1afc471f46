package wire

import (
	"fmt"
	"io"

	"tntcore/internal/proto"
)

// ReadFrame reads one length-prefixed IPROTO frame from r and returns its
// payload (header+body MessagePack bytes, undecoded).
func ReadFrame(r io.Reader) (payload []byte, err error) {
	var hdr [LengthPrefixSize]byte
	if _, err = io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("read frame length: %w", err)
	}
	length := DecodeHeader(hdr)
	if length > proto.MaxFrameSize {
		return nil, fmt.Errorf("frame length %d exceeds max %d", length, proto.MaxFrameSize)
	}
	payload = make([]byte, length) //nolint:gosec // G115: bounded by proto.MaxFrameSize check above
	if _, err = io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload: %w", err)
	}
	return payload, nil
}
