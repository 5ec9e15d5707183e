// Package fileid derives stable identifiers from document content.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
)

const prefix = "sha256:"

// ContentDigest returns a stable digest of content, used to relate catalog
// entries that were produced from the same source text.
func ContentDigest(content []byte) string {
	hash := sha256.Sum256(content)
	return prefix + hex.EncodeToString(hash[:])
}
