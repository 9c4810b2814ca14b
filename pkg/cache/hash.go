package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash returns the hex SHA-256 of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// StoreScope returns the key prefix for caches shared between stores:
// "store:" followed by twelve hex digits of the DSN's hash.
func StoreScope(dsn string) string {
	return "store:" + Hash([]byte(dsn))[:12] + ":"
}
