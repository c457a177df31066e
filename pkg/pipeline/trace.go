package pipeline

import (
	"github.com/tably-ai/tably/pkg/models"
)

const previewLen = 120

// Trace collects per-stage cache/llm provenance for one turn. It is
// allocated per request and threaded through the stage calls; it must
// never live in a package-level variable, since concurrent turns would
// corrupt each other's entries.
type Trace struct {
	entries []models.TraceEntry
}

// Add appends one entry. A nil Trace is a no-op so tracing stays
// optional.
func (t *Trace) Add(step string, source models.TraceSource, input, output string) {
	if t == nil {
		return
	}
	t.entries = append(t.entries, models.TraceEntry{
		Step:   step,
		Source: source,
		Input:  preview(input),
		Output: preview(output),
	})
}

// Entries returns the collected entries in order.
func (t *Trace) Entries() []models.TraceEntry {
	if t == nil {
		return nil
	}
	return t.entries
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewLen {
		return s
	}
	return string(r[:previewLen]) + "…"
}
