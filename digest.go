package hashdrop

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/minio/sha256-simd"
)

// DigestSize is the length of a hex encoded digest.
const DigestSize = 2 * sha256.Size

// Digest returns the lowercase hex SHA-256 digest of b.
func Digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// DigestReader consumes r and returns its digest and length.
func DigestReader(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, fmt.Errorf("digest reader: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// IsValidDigest reports whether s is a well formed digest: exactly 64
// lowercase hex characters.
func IsValidDigest(s string) bool {
	if len(s) != DigestSize {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
