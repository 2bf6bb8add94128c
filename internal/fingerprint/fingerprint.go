// Package fingerprint computes content digests used for change detection.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest returns the lower-case hex SHA-256 of content.
func Digest(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// DigestString is Digest for text.
func DigestString(s string) string {
	return Digest([]byte(s))
}
