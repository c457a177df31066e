package models

import (
	"encoding/json"
	"time"
)

// CacheEntry is one persisted row of the response cache. KeyHash is
// derived from the scope and key parts and uniquely identifies them.
// IsIncorrect is human feedback metadata only; it affects neither
// lookup nor eviction.
type CacheEntry struct {
	KeyHash     string          `json:"key_hash"`
	Scope       string          `json:"scope"`
	Value       json.RawMessage `json:"value"`
	CreatedAt   time.Time       `json:"created_at"`
	LastUsedAt  time.Time       `json:"last_used_at"`
	IsIncorrect bool            `json:"is_incorrect"`
}

// CacheStats reports cache performance metrics.
type CacheStats struct {
	Entries int64 `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}
