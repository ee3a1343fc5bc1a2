package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// BlockKey derives the content-addressed cache key of a code block from
// "lang:meta:code".
func BlockKey(code, lang, meta string) string {
	return Sum([]byte(lang + ":" + meta + ":" + code))
}
