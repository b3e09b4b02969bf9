package identity

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// newOpaqueToken returns a cryptographically random hex token that embeds no
// identity information, per the Identity Store's session-token invariant.
func newOpaqueToken(byteLen int) (string, error) {
	b := make([]byte, byteLen)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
