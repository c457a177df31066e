// Package schema supplies the database schema description used to
// ground SQL and chart generation, plus a stable hash of it so cached
// results invalidate automatically when the schema text changes.
package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
)

// Provider exposes schema context text and its content hash.
type Provider interface {
	Context() string
	Hash() string
}

type staticProvider struct {
	text string
	hash string
}

func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}

// NewStatic wraps a fixed schema description string.
func NewStatic(text string) Provider {
	return &staticProvider{text: text, hash: hashText(text)}
}

// NewFromFile loads the schema description from a file. The hash is
// computed once at load time.
func NewFromFile(path string) (Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return NewStatic(string(data)), nil
}

func (p *staticProvider) Context() string { return p.text }
func (p *staticProvider) Hash() string    { return p.hash }
