package identity

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// ArgonParams configures the adaptive password KDF. Defaults are suitable
// for an interactive login path; see pkg/config.IdentityConfig.
type ArgonParams struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
}

const saltLen = 16

func defaultArgonParams() ArgonParams {
	return ArgonParams{Time: 1, Memory: 64 * 1024, Threads: 4, KeyLen: 32}
}

// hashPassword derives a fresh random salt and returns the salt and derived
// key, both hex-encoded for storage.
func hashPassword(password string, p ArgonParams) (saltHex, hashHex string, err error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", "", fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, p.KeyLen)
	return hex.EncodeToString(salt), hex.EncodeToString(key), nil
}

// verifyPassword recomputes the hash with the stored salt and parameters and
// compares it to the stored hash in constant time.
func verifyPassword(password, saltHex, hashHex string, p ArgonParams) (bool, error) {
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false, fmt.Errorf("decode salt: %w", err)
	}
	want, err := hex.DecodeString(hashHex)
	if err != nil {
		return false, fmt.Errorf("decode hash: %w", err)
	}

	got := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
