// Package textutil implements the protected-token masking, bracket/quote
// balancing, punctuation normalization, title-case preservation, and
// deterministic hashing primitives that every writer and rewriter in this
// module relies on.
package textutil

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hash returns the lowercase hex SHA-256 of the trimmed UTF-8 bytes of s.
// Blank input (empty after trimming) returns an empty string.
func Hash(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(trimmed))
	return hex.EncodeToString(sum[:])
}

// HashBytes returns the raw 32-byte SHA-256 digest of the trimmed UTF-8
// bytes of s, or nil if s is blank.
func HashBytes(s string) []byte {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	sum := sha256.Sum256([]byte(trimmed))
	out := make([]byte, len(sum))
	copy(out, sum[:])
	return out
}
