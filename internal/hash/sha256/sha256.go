// Package sha256 fingerprints fetched page bodies.
package sha256

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
)

// Hasher implements crawler.Hasher using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the hex digest of data after collapsing every run of white
// space to a single space and trimming the ends. Two renderings of the same
// listing that differ only in formatting get the same fingerprint.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(bytes.Join(bytes.Fields(data), []byte{' '}))
	return hex.EncodeToString(sum[:]), nil
}
