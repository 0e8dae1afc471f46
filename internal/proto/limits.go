package proto

// MaxFrameSize bounds a single IPROTO frame body, guarding the length
// prefix against a corrupt or malicious peer before an allocation is made.
const MaxFrameSize uint32 = 64 * 1024 * 1024
