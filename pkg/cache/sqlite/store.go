// Package sqlite implements the persistent LLM response cache: an
// exact-match key/value store with LRU eviction and a bounded
// diversity variant, backed by a single SQLite table.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/tably-ai/tably/pkg/cache"
	"github.com/tably-ai/tably/pkg/models"
)

// timeLayout is a fixed-width UTC format so stored timestamps compare
// chronologically as text, which the LRU victim query relies on.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const createCacheTable = `
CREATE TABLE IF NOT EXISTS llm_cache (
	key_hash TEXT PRIMARY KEY,
	call_id TEXT,
	value TEXT,
	created_at TEXT,
	last_used_at TEXT,
	is_incorrect INTEGER DEFAULT 0
);
`

const createLRUIndex = `
CREATE INDEX IF NOT EXISTS idx_llm_cache_lru ON llm_cache(last_used_at, created_at);
`

// Store is the persistent response cache. Every operation is its own
// transaction; storage errors on the hot path are logged and degrade
// to cache-miss behavior rather than failing the caller (fail-open).
type Store struct {
	db            *sql.DB
	maxEntries    int
	diversitySize int
	log           *zap.Logger
	hits          atomic.Int64
	misses        atomic.Int64
}

// New opens (or creates) the cache database. maxEntries caps the row
// count before LRU eviction; diversitySize caps the per-key list kept
// by GetOrCallDiversity.
func New(dbPath string, maxEntries, diversitySize int, log *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	if _, err := db.Exec(createCacheTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}
	if _, err := db.Exec(createLRUIndex); err != nil {
		db.Close()
		return nil, fmt.Errorf("index cache db: %w", err)
	}

	if maxEntries <= 0 {
		maxEntries = 10000
	}
	if diversitySize <= 0 {
		diversitySize = 5
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{db: db, maxEntries: maxEntries, diversitySize: diversitySize, log: log}, nil
}

func now() string {
	return time.Now().UTC().Format(timeLayout)
}

// Get returns the cached value for the scope and key parts, refreshing
// last_used_at on a hit. Storage errors are logged and reported as a
// miss.
func (s *Store) Get(scope string, parts []any) (json.RawMessage, bool) {
	key := cache.BuildKey(scope, parts...)

	var value sql.NullString
	err := s.db.QueryRow(`SELECT value FROM llm_cache WHERE key_hash = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		s.misses.Add(1)
		return nil, false
	}
	if err != nil {
		s.log.Warn("cache get failed", zap.String("scope", scope), zap.Error(err))
		s.misses.Add(1)
		return nil, false
	}

	if _, err := s.db.Exec(`UPDATE llm_cache SET last_used_at = ? WHERE key_hash = ?`, now(), key); err != nil {
		s.log.Warn("cache touch failed", zap.String("scope", scope), zap.Error(err))
	}
	s.hits.Add(1)
	return json.RawMessage(value.String), true
}

// Set stores a JSON-serializable value under the scope and key parts.
// An existing key is overwritten in place; a new key inserted at
// capacity first evicts the single least recently used row. Storage
// errors are logged and the call becomes a no-op.
func (s *Store) Set(scope string, parts []any, value any) {
	key := cache.BuildKey(scope, parts...)
	encoded, err := json.Marshal(value)
	if err != nil {
		s.log.Warn("cache set: value not serializable", zap.String("scope", scope), zap.Error(err))
		return
	}
	if err := s.upsert(key, scope, string(encoded)); err != nil {
		s.log.Warn("cache set failed", zap.String("scope", scope), zap.Error(err))
	}
}

func (s *Store) upsert(key, scope, encoded string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRow(`SELECT 1 FROM llm_cache WHERE key_hash = ?`, key).Scan(&exists)
	switch {
	case err == nil:
		// Updates never trigger eviction.
		if _, err := tx.Exec(`UPDATE llm_cache SET value = ?, last_used_at = ? WHERE key_hash = ?`,
			encoded, now(), key); err != nil {
			return err
		}
	case errors.Is(err, sql.ErrNoRows):
		var count int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM llm_cache`).Scan(&count); err != nil {
			return err
		}
		if count >= s.maxEntries {
			// True LRU: "used" covers reads and writes alike.
			if _, err := tx.Exec(`DELETE FROM llm_cache WHERE key_hash IN (
				SELECT key_hash FROM llm_cache
				ORDER BY coalesce(last_used_at, created_at) ASC LIMIT 1)`); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(`INSERT INTO llm_cache (key_hash, call_id, value, created_at, last_used_at)
			VALUES (?, ?, ?, ?, NULL)`, key, scope, encoded, now()); err != nil {
			return err
		}
	default:
		return err
	}
	return tx.Commit()
}

// GetOrCall returns the cached string for the key, or invokes compute,
// persists its result, and returns it. Two racing misses may both
// compute; the later Set wins. If the store is unavailable the call
// degrades to computing directly and returning the result uncached.
func (s *Store) GetOrCall(scope string, parts []any, compute func() (string, error)) (string, error) {
	if raw, ok := s.Get(scope, parts); ok {
		var v string
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		s.log.Warn("cache entry not a string, recomputing", zap.String("scope", scope))
	}
	out, err := compute()
	if err != nil {
		return "", err
	}
	s.Set(scope, parts, out)
	return out, nil
}

// GetOrCallDiversity maintains up to diversitySize distinct strings per
// key. Under the cap it always computes, appending unseen results; at
// the cap it stops computing and returns a uniformly random stored
// entry, breaking deterministic repetition for generative responses.
func (s *Store) GetOrCallDiversity(scope string, parts []any, compute func() (string, error)) (string, error) {
	var stored []string
	if raw, ok := s.Get(scope, parts); ok {
		if err := json.Unmarshal(raw, &stored); err != nil {
			s.log.Warn("diversity entry malformed, resetting", zap.String("scope", scope))
			stored = nil
		}
	}

	if len(stored) >= s.diversitySize {
		return stored[rand.Intn(len(stored))], nil
	}

	out, err := compute()
	if err != nil {
		return "", err
	}
	for _, v := range stored {
		if v == out {
			return out, nil
		}
	}
	s.Set(scope, parts, append(stored, out))
	return out, nil
}

// ListEntries returns cache rows ordered most recently used first.
func (s *Store) ListEntries(limit int) ([]models.CacheEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`SELECT key_hash, call_id, value, created_at, last_used_at, is_incorrect
		FROM llm_cache ORDER BY coalesce(last_used_at, created_at) DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("cache list: %w", err)
	}
	defer rows.Close()

	var entries []models.CacheEntry
	for rows.Next() {
		var e models.CacheEntry
		var scope, value, createdAt, lastUsedAt sql.NullString
		var incorrect int
		if err := rows.Scan(&e.KeyHash, &scope, &value, &createdAt, &lastUsedAt, &incorrect); err != nil {
			return nil, fmt.Errorf("scan cache row: %w", err)
		}
		e.Scope = scope.String
		e.Value = json.RawMessage(value.String)
		e.IsIncorrect = incorrect != 0
		if createdAt.Valid {
			e.CreatedAt, _ = time.Parse(timeLayout, createdAt.String)
		}
		if lastUsedAt.Valid {
			e.LastUsedAt, _ = time.Parse(timeLayout, lastUsedAt.String)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkIncorrect flags or unflags a cached value as human-reviewed
// incorrect. The flag is feedback metadata only.
func (s *Store) MarkIncorrect(keyHash string, incorrect bool) error {
	v := 0
	if incorrect {
		v = 1
	}
	res, err := s.db.Exec(`UPDATE llm_cache SET is_incorrect = ? WHERE key_hash = ?`, v, keyHash)
	if err != nil {
		return fmt.Errorf("cache mark: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("cache mark: no entry with key %s", keyHash)
	}
	return nil
}

// Clear deletes all entries, or only those belonging to one scope.
func (s *Store) Clear(scope string) error {
	var err error
	if scope == "" {
		_, err = s.db.Exec(`DELETE FROM llm_cache`)
	} else {
		_, err = s.db.Exec(`DELETE FROM llm_cache WHERE call_id = ?`, scope)
	}
	if err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

// Stats returns cache performance metrics. Hit and miss counters are
// in-process only.
func (s *Store) Stats() (models.CacheStats, error) {
	var count int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM llm_cache`).Scan(&count); err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return models.CacheStats{
		Entries: count,
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
	}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
