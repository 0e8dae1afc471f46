package proto

// GreetingSize is the fixed length in bytes of the IPROTO greeting banner
// sent by the server immediately after accept, before any framed message.
const GreetingSize = 128

// GreetingLine1Size is the length of the first greeting line, which carries
// the server's human-readable identification (Tarantool version, server
// UUID on some versions). The salt lives entirely on the second line.
const GreetingLine1Size = 64

// SaltLine is the second 64-byte line of the greeting. Its first
// SaltBase64Size bytes are the base64 encoding of the raw auth salt; the
// remainder is padding.
const (
	SaltLineOffset = GreetingLine1Size
	SaltLineSize   = 64
	SaltBase64Size = 44
	SaltRawSize    = 32
)
