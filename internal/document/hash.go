package document

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identifiers.
// The version suffix allows the algorithm to change without collisions.
const (
	DomainRecordKey = "jsonmapper/record-key/v1"
	DomainContent   = "jsonmapper/content/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RecordKey computes the identity of a record from the values of its unique
// fields, in policy order. Array values are sorted by canonical form first so
// that two records matching under EqualUnordered share a key.
func RecordKey(entityID string, values []any) (string, error) {
	parts := make([]any, len(values))
	for i, v := range values {
		if arr, ok := v.([]any); ok {
			sorted, err := sortedCanonical(arr)
			if err != nil {
				return "", fmt.Errorf("record key: %w", err)
			}
			elems := make([]any, len(sorted))
			for j, s := range sorted {
				elems[j] = s
			}
			parts[i] = elems
			continue
		}
		parts[i] = v
	}

	canonical, err := MarshalCanonical(map[string]any{
		"entity": entityID,
		"values": parts,
	})
	if err != nil {
		return "", fmt.Errorf("record key: %w", err)
	}
	return hashWithDomain(DomainRecordKey, canonical), nil
}

// ContentHash computes a content-addressed hash of a document.
func ContentHash(v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("content hash: %w", err)
	}
	return hashWithDomain(DomainContent, canonical), nil
}
