// Package llm defines the completion provider boundary: an opaque
// text-in, text-out function plus the typed errors its callers
// dispatch on.
package llm

import "context"

// Options tunes a single completion call.
type Options struct {
	Temperature float32
	MaxTokens   int
}

// CompletionProvider produces a completion for a system and user
// prompt. Implementations return an error on failure; they never
// retry.
type CompletionProvider interface {
	Complete(ctx context.Context, system, user string, opts Options) (string, error)
}

// Unconfigured is a CompletionProvider with no credential. Every call
// fails with ErrNotConfigured so stages apply their deterministic
// fallbacks.
type Unconfigured struct{}

// Complete implements CompletionProvider.
func (Unconfigured) Complete(context.Context, string, string, Options) (string, error) {
	return "", ErrNotConfigured
}
