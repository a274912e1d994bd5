// Package utils holds small string and formatting helpers shared by sstray
// packages.
package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ContainsAny checks if s contains any of the substrings (case-insensitive).
func ContainsAny(s string, substrings ...string) bool {
	sLower := strings.ToLower(s)
	for _, sub := range substrings {
		if strings.Contains(sLower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// SanitizeKey makes a key safe for use as a filename.
// Keys made only of ASCII letters, digits, '-' and '_' are kept as-is; any
// other key is replaced by its SHA-256 hex digest, so distinct keys never
// share a file.
func SanitizeKey(key string) string {
	for _, c := range []byte(key) {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') || c == '_' || c == '-' {
			continue
		}
		h := sha256.Sum256([]byte(key))
		return hex.EncodeToString(h[:])
	}
	return key
}
