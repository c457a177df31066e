package models

// TraceSource says where a stage's output came from.
type TraceSource string

const (
	SourceCache    TraceSource = "cache"
	SourceLLM      TraceSource = "llm"
	SourceFallback TraceSource = "fallback"
)

// TraceEntry is one row of the per-turn debug trace. Input and Output
// are previews, not full payloads; the trace is request-scoped and
// never persisted.
type TraceEntry struct {
	Step   string      `json:"step"`
	Source TraceSource `json:"source"`
	Input  string      `json:"input"`
	Output string      `json:"output"`
}
