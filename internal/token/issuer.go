// Package token issues opaque session credentials.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// CredentialBytes is the entropy per credential. Rendered as hex, a
// credential is twice this many characters on the wire.
const CredentialBytes = 16

// Issuer produces unguessable credentials. It does not track what it has
// issued; uniqueness within a room is enforced by the room's own map, and
// 128 bits of randomness make a collision negligible in practice.
type Issuer struct{}

func (Issuer) Issue() (string, error) {
	buf := make([]byte, CredentialBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
