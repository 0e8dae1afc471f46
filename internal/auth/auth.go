// Package auth implements IPROTO's chap-sha1 greeting authentication: a
// single-round-trip scramble derived from the password and the server's
// greeting salt, unlike SCRAM's multi-message challenge/response.
package auth

import (
	"crypto/sha1" //nolint:gosec // chap-sha1 is the wire protocol's fixed algorithm, not a choice
	"encoding/base64"
	"fmt"

	"tntcore/internal/proto"
)

// Method is the name IPROTO expects in the auth request tuple's first
// element, identifying the scramble algorithm below.
const Method = "chap-sha1"

// DecodeSalt extracts and base64-decodes the auth salt from a 128-byte
// IPROTO greeting. The salt is the first SaltBase64Size characters of the
// greeting's second line; Tarantool only uses the first proto.SaltRawSize
// decoded bytes.
func DecodeSalt(greeting []byte) ([]byte, error) {
	if len(greeting) != proto.GreetingSize {
		return nil, fmt.Errorf("auth: greeting is %d bytes, want %d", len(greeting), proto.GreetingSize)
	}
	line2 := greeting[proto.SaltLineOffset : proto.SaltLineOffset+proto.SaltLineSize]
	b64 := line2[:proto.SaltBase64Size]
	salt := make([]byte, base64.StdEncoding.DecodedLen(len(b64)))
	n, err := base64.StdEncoding.Decode(salt, b64)
	if err != nil {
		return nil, fmt.Errorf("auth: decode salt: %w", err)
	}
	salt = salt[:n]
	if len(salt) < proto.SaltRawSize {
		return nil, fmt.Errorf("auth: decoded salt is %d bytes, want at least %d", len(salt), proto.SaltRawSize)
	}
	return salt[:proto.SaltRawSize], nil
}

// Scramble computes the chap-sha1 scramble IPROTO expects in an auth
// request: sha1(password) XOR sha1(salt[:20] || sha1(sha1(password))).
func Scramble(password string, salt []byte) ([]byte, error) {
	if len(salt) < 20 {
		return nil, fmt.Errorf("auth: salt must be at least 20 bytes, got %d", len(salt))
	}
	step1 := sha1.Sum([]byte(password))
	step2 := sha1.Sum(step1[:])

	h := sha1.New()
	h.Write(salt[:20])
	h.Write(step2[:])
	step3 := h.Sum(nil)

	scramble := make([]byte, sha1.Size)
	for i := range scramble {
		scramble[i] = step1[i] ^ step3[i]
	}
	return scramble, nil
}
