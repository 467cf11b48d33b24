package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest returns the hex SHA-256 of parts. Parts are NUL-separated, so
// ("ab", "c") and ("a", "bc") digest differently.
func Digest(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
