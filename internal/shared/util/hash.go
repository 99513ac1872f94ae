package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashKey returns a stable hex identifier for s. Used to keep session ids and
// client addresses out of log lines.
func HashKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// ShortHash is HashKey truncated to 12 characters.
func ShortHash(s string) string {
	return HashKey(s)[:12]
}
