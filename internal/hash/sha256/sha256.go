// Package sha256 provides content digests for payload deduplication.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher implements favicon.Hasher using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Digest returns the hex-encoded SHA-256 sum of data. Identical byte
// sequences always yield identical digests, which is what the coordinator's
// dedup and the scratch file naming rely on.
func (Hasher) Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
