// AngelaMos | 2026
// security.go

package core

import (
	"crypto/sha256"
	"encoding/hex"
)

const fingerprintLen = 12

// HashToken returns the hex SHA-256 of a bearer token. Raw tokens never
// leave the session package; logs and caches key on the hash.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	return HashToken(token)[:fingerprintLen]
}
