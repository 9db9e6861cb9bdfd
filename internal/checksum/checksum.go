// Package checksum derives content digests used as ETags and cache keys.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// etagLen is the number of hex characters kept for an ETag.
const etagLen = 16

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ETag returns a shortened digest of the JSON encoding of v.
func ETag(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return Sum(data)[:etagLen], nil
}
