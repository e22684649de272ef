package hypermedia

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ETag computes the conditional-cache validator for a resource: a quoted
// SHA-1 hex digest over the canonical JSON form of the resource. The
// representation is round-tripped through a map so keys serialize in sorted
// order; semantically identical content always yields an identical validator
// regardless of field order.
//
// Validators must be recomputed per request: the underlying resource may have
// changed between reads, and when links are attached the digest covers the
// augmented form, so a status flip (which swaps the action link) invalidates
// stale caches too.
func ETag(resource interface{}) (string, error) {
	raw, err := json.Marshal(resource)
	if err != nil {
		return "", fmt.Errorf("etag: marshal resource: %w", err)
	}
	var canonical map[string]interface{}
	if err := json.Unmarshal(raw, &canonical); err != nil {
		return "", fmt.Errorf("etag: canonicalize resource: %w", err)
	}
	sorted, err := json.Marshal(canonical)
	if err != nil {
		return "", fmt.Errorf("etag: marshal canonical form: %w", err)
	}
	sum := sha1.Sum(sorted)
	return `"` + hex.EncodeToString(sum[:]) + `"`, nil
}
