package helpers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// NormalizeForDiff collapses runs of whitespace so reflowed text hashes the same.
func NormalizeForDiff(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ContentHash computes a SHA-256 hash for the normalised content.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(NormalizeForDiff(content)))
	return hex.EncodeToString(sum[:])
}

// JSONHash hashes the JSON encoding of v. Map keys are encoded in sorted
// order, so equal documents hash equally regardless of how they were built.
func JSONHash(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Changed reports whether current differs from previous beyond whitespace.
func Changed(previous, current string) bool {
	return ContentHash(previous) != ContentHash(current)
}
