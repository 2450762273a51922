package core

import (
	"crypto/sha1"
	"encoding/hex"
)

// Hash returns the hex encoded SHA-1 digest of value. It names the
// intermediate namespace of a chain, so equal final outputs share a
// namespace and distinct ones do not collide.
func Hash(value string) string {
	sum := sha1.Sum([]byte(value))
	return hex.EncodeToString(sum[:])
}
