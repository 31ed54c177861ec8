// Package anonymizer derives stable pseudonyms from transport account ids.
// The mapping is a keyed BLAKE2b-256 hash, so the same id and secret always
// produce the same pseudonym and the id cannot be recovered from it.
package anonymizer

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Anonymizer holds the secret key. It is safe for concurrent use.
type Anonymizer struct {
	key []byte
}

// New returns an Anonymizer keyed by secret. Secrets longer than the BLAKE2b
// key limit are compressed to 32 bytes first.
func New(secret string) *Anonymizer {
	key := []byte(secret)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum256(key)
		key = sum[:]
	}
	return &Anonymizer{key: key}
}

// Pseudonymize returns the 64-char hex pseudonym for externalID.
func (a *Anonymizer) Pseudonymize(externalID string) string {
	h, err := blake2b.New256(a.key)
	if err != nil {
		// key length is bounded in New
		panic(err)
	}
	h.Write([]byte(externalID))
	return hex.EncodeToString(h.Sum(nil))
}
