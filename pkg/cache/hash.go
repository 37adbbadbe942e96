package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// FingerprintLen is the length of a fingerprint in hex characters.
const FingerprintLen = sha256.Size * 2

// Fingerprint returns the lowercase hex SHA-256 digest of key. The result is
// a fixed-length, filesystem-safe identifier for any cache key regardless of
// length, drive letters, or path separators. It is never reversed.
func Fingerprint(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

// validFingerprint reports whether fp looks like a value produced by
// Fingerprint. Anything else is refused so a caller can never address a file
// outside the cache directory.
func validFingerprint(fp string) bool {
	if len(fp) != FingerprintLen {
		return false
	}
	for i := 0; i < len(fp); i++ {
		c := fp[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
