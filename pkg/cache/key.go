// Package cache derives deterministic, collision-resistant keys for the
// response cache.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Normalize canonicalizes prompt text for key derivation: leading and
// trailing whitespace is trimmed, the text is lowercased, and internal
// whitespace runs collapse to a single space. Prompts that differ only
// in spacing or case hash identically.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// BuildKey hashes a scope and its ordered key parts into a hex SHA-256
// digest. The inputs are encoded as a JSON array with insertion order
// preserved; parts that cannot be marshalled are coerced to their
// string form. Pure function, no I/O.
func BuildKey(scope string, parts ...any) string {
	items := make([]json.RawMessage, 0, len(parts)+1)
	scopeJSON, _ := json.Marshal(scope)
	items = append(items, scopeJSON)
	for _, p := range parts {
		b, err := json.Marshal(p)
		if err != nil {
			b, _ = json.Marshal(fmt.Sprintf("%v", p))
		}
		items = append(items, b)
	}
	encoded, _ := json.Marshal(items)
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}
