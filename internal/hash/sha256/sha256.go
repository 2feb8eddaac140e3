// Package sha256 provides SHA-256 digests for change detection.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Prefix tags every digest with its algorithm.
const Prefix = "sha256:"

// Hasher implements crawler.Hasher using SHA-256. snapshot.Fingerprint digests
// the sorted canonical record tuples of a run with it; equal digests across
// runs mean the list did not change.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the tagged hex digest of data.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return Prefix + hex.EncodeToString(sum[:]), nil
}
