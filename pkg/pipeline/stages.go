package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tably-ai/tably/pkg/cache"
	cachesqlite "github.com/tably-ai/tably/pkg/cache/sqlite"
	"github.com/tably-ai/tably/pkg/llm"
	"github.com/tably-ai/tably/pkg/models"
)

// Resolver wraps the completion provider behind the response cache.
// Each stage is one cached provider call with a deterministic fallback:
// provider or cache failure never aborts a turn at this layer.
type Resolver struct {
	store    *cachesqlite.Store
	provider llm.CompletionProvider
	model    string
	log      *zap.Logger
}

// NewResolver builds a Resolver. model is part of every cache key so a
// model switch invalidates cached answers.
func NewResolver(store *cachesqlite.Store, provider llm.CompletionProvider, model string, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{store: store, provider: provider, model: model, log: log}
}

// cachedCall runs one provider call behind GetOrCall and records the
// outcome on the trace. ok is false when the provider failed.
func (r *Resolver) cachedCall(ctx context.Context, trace *Trace, step, scope string, parts []any, system, user string, opts llm.Options) (string, bool) {
	called := false
	out, err := r.store.GetOrCall(scope, parts, func() (string, error) {
		called = true
		return r.provider.Complete(ctx, system, user, opts)
	})
	if err != nil {
		r.logProviderErr(step, err)
		trace.Add(step, models.SourceFallback, user, err.Error())
		return "", false
	}
	source := models.SourceCache
	if called {
		source = models.SourceLLM
	}
	trace.Add(step, source, user, out)
	return out, true
}

// diversityCall is cachedCall over the diversity variant, used for
// subjective generative stages where repetition would grate.
func (r *Resolver) diversityCall(ctx context.Context, trace *Trace, step, scope string, parts []any, system, user string, opts llm.Options) (string, bool) {
	called := false
	out, err := r.store.GetOrCallDiversity(scope, parts, func() (string, error) {
		called = true
		return r.provider.Complete(ctx, system, user, opts)
	})
	if err != nil {
		r.logProviderErr(step, err)
		trace.Add(step, models.SourceFallback, user, err.Error())
		return "", false
	}
	source := models.SourceCache
	if called {
		source = models.SourceLLM
	}
	trace.Add(step, source, user, out)
	return out, true
}

func (r *Resolver) logProviderErr(step string, err error) {
	if err == llm.ErrNotConfigured {
		r.log.Debug("provider not configured, using fallback", zap.String("step", step))
		return
	}
	r.log.Warn("provider call failed, using fallback", zap.String("step", step), zap.Error(err))
}

// Correct runs the spelling/grammar correction stage. On any failure
// the input passes through unchanged.
func (r *Resolver) Correct(ctx context.Context, trace *Trace, msg string) string {
	parts := []any{r.model, cache.Normalize(msg)}
	out, ok := r.cachedCall(ctx, trace, "correct", scopeCorrect, parts, correctSystem, msg, llm.Options{})
	if !ok || strings.TrimSpace(out) == "" {
		return msg
	}
	return strings.TrimSpace(out)
}

type clarifyReply struct {
	IsReply  bool   `json:"is_reply"`
	Question string `json:"question"`
}

// ResolveClarification decides whether msg answers the assistant's
// pending clarification question and, if so, returns the merged
// standalone question. The fallback is "not a reply".
func (r *Resolver) ResolveClarification(ctx context.Context, trace *Trace, clarification, priorQuestion, msg string) (bool, string) {
	parts := []any{r.model, cache.Normalize(clarification), cache.Normalize(msg)}
	user := fmt.Sprintf("Original question: %s\nClarification asked: %s\nNew message: %s",
		priorQuestion, clarification, msg)
	out, ok := r.cachedCall(ctx, trace, "clarification", scopeClarification, parts, clarifySystem, user, llm.Options{})
	if !ok {
		return false, ""
	}
	var reply clarifyReply
	if err := json.Unmarshal(extractJSON(out), &reply); err != nil {
		r.log.Warn("clarification reply malformed", zap.Error(err))
		return false, ""
	}
	return reply.IsReply, strings.TrimSpace(reply.Question)
}

type followUpReply struct {
	IsFollowUp bool   `json:"is_follow_up"`
	Question   string `json:"question"`
}

// ResolveFollowUp decides whether msg continues the immediately
// preceding user question and, if so, returns the rewritten standalone
// question. The fallback is "not a follow-up".
func (r *Resolver) ResolveFollowUp(ctx context.Context, trace *Trace, prevQuestion, msg string) (bool, string) {
	parts := []any{r.model, cache.Normalize(prevQuestion), cache.Normalize(msg)}
	user := fmt.Sprintf("Previous question: %s\nNew message: %s", prevQuestion, msg)
	out, ok := r.cachedCall(ctx, trace, "followup", scopeFollowUp, parts, followUpSystem, user, llm.Options{})
	if !ok {
		return false, ""
	}
	var reply followUpReply
	if err := json.Unmarshal(extractJSON(out), &reply); err != nil {
		r.log.Warn("followup reply malformed", zap.Error(err))
		return false, ""
	}
	return reply.IsFollowUp, strings.TrimSpace(reply.Question)
}

// Classify determines the intent of the resolved message. Any failure
// falls back to GENERAL_CHAT so the turn still produces a response.
func (r *Resolver) Classify(ctx context.Context, trace *Trace, msg string) models.Classification {
	fallback := models.Classification{Intent: models.IntentGeneralChat}
	parts := []any{r.model, cache.Normalize(msg)}
	out, ok := r.cachedCall(ctx, trace, "classify", scopeClassify, parts, classifySystem, msg, llm.Options{})
	if !ok {
		return fallback
	}
	var cls models.Classification
	if err := json.Unmarshal(extractJSON(out), &cls); err != nil || cls.Intent == "" {
		r.log.Warn("classification malformed, defaulting to general chat")
		return fallback
	}
	return cls
}

// GenerateSQL produces a SELECT for the question, keyed by schema hash
// and business date so cached SQL invalidates when either changes. A
// CANNOT_ANSWER reply from the model surfaces as CannotAnswerError and
// is never cached as SQL.
func (r *Resolver) GenerateSQL(ctx context.Context, trace *Trace, sp schemaInfo, question, date string) (string, error) {
	parts := []any{r.model, sp.hash, cache.Normalize(question), date}
	user := fmt.Sprintf("Schema:\n%s\n\nDate: %s\nQuestion: %s", sp.context, date, question)
	called := false
	out, err := r.store.GetOrCall(scopeGenerateSQL, parts, func() (string, error) {
		called = true
		reply, err := r.provider.Complete(ctx, generateSQLSystem, user, llm.Options{})
		if err != nil {
			return "", err
		}
		return llm.DetectCannotAnswer(stripFences(reply))
	})
	if err != nil {
		trace.Add("generate_sql", models.SourceFallback, question, err.Error())
		return "", err
	}
	source := models.SourceCache
	if called {
		source = models.SourceLLM
	}
	trace.Add("generate_sql", source, question, out)
	return out, nil
}

// ExplainSQL produces a one-sentence explanation of the generated
// query. The fallback is a deterministic template so table parts always
// carry a non-empty explanation.
func (r *Resolver) ExplainSQL(ctx context.Context, trace *Trace, sp schemaInfo, question, query, date string) string {
	parts := []any{r.model, sp.hash, cache.Normalize(question), date}
	user := fmt.Sprintf("Question: %s\nSQL: %s", question, query)
	out, ok := r.cachedCall(ctx, trace, "explain", scopeExplainSQL, parts, explainSQLSystem, user, llm.Options{})
	if !ok || strings.TrimSpace(out) == "" {
		return fmt.Sprintf("Results for: %s", question)
	}
	return strings.TrimSpace(out)
}

// GenerateChart produces a chart configuration whose sql field drives
// the data fetch.
func (r *Resolver) GenerateChart(ctx context.Context, trace *Trace, sp schemaInfo, question, date string) (models.ChartConfig, error) {
	parts := []any{r.model, sp.hash, cache.Normalize(question), date}
	user := fmt.Sprintf("Schema:\n%s\n\nDate: %s\nQuestion: %s", sp.context, date, question)
	out, ok := r.cachedCall(ctx, trace, "chart", scopeChart, parts, chartSystem, user, llm.Options{})
	if !ok {
		return models.ChartConfig{}, fmt.Errorf("chart generation unavailable")
	}
	var cfg models.ChartConfig
	if err := json.Unmarshal(extractJSON(out), &cfg); err != nil {
		return models.ChartConfig{}, fmt.Errorf("parse chart config: %w", err)
	}
	return cfg, nil
}

// Summarize produces a short narrative over query results. Diversity
// cached: repeated identical questions rotate among stored phrasings.
func (r *Resolver) Summarize(ctx context.Context, trace *Trace, question, fingerprint string, data models.Table) (string, bool) {
	parts := []any{r.model, cache.Normalize(question), fingerprint}
	user := fmt.Sprintf("Question: %s\nResults: %s", question, renderTable(data))
	return r.diversityCall(ctx, trace, "summary", scopeSummary, parts, summarySystem, user, llm.Options{Temperature: 0.7})
}

// Report produces a longer structured write-up over query results.
func (r *Resolver) Report(ctx context.Context, trace *Trace, question, fingerprint string, data models.Table) (string, bool) {
	parts := []any{r.model, cache.Normalize(question), fingerprint}
	user := fmt.Sprintf("Question: %s\nResults: %s", question, renderTable(data))
	return r.diversityCall(ctx, trace, "report", scopeReport, parts, reportSystem, user, llm.Options{Temperature: 0.7})
}

// Chat handles conversational messages outside the data path.
func (r *Resolver) Chat(ctx context.Context, trace *Trace, msg string) (string, bool) {
	parts := []any{r.model, cache.Normalize(msg)}
	return r.diversityCall(ctx, trace, "chat", scopeChat, parts, chatSystem, msg, llm.Options{Temperature: 0.7})
}

// AskClarification produces the clarification question for an
// ambiguous message, with a deterministic fallback.
func (r *Resolver) AskClarification(ctx context.Context, trace *Trace, question string) string {
	parts := []any{r.model, cache.Normalize(question)}
	out, ok := r.cachedCall(ctx, trace, "ask_clarification", scopeClarifyAsk, parts, clarifyAskSystem, question, llm.Options{})
	if !ok || strings.TrimSpace(out) == "" {
		return fmt.Sprintf("Could you clarify what you mean by %q?", question)
	}
	return strings.TrimSpace(out)
}

// extractJSON trims markdown code fences and surrounding prose so the
// first JSON object in a reply can be unmarshalled.
func extractJSON(s string) []byte {
	s = stripFences(s)
	if start := strings.IndexByte(s, '{'); start >= 0 {
		if end := strings.LastIndexByte(s, '}'); end > start {
			return []byte(s[start : end+1])
		}
	}
	return []byte(s)
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```sql")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

// renderTable flattens query results for a prompt.
func renderTable(t models.Table) string {
	b, err := json.Marshal(t)
	if err != nil {
		return fmt.Sprintf("%v", t)
	}
	return string(b)
}

// schemaInfo is the snapshot of schema text and hash a turn runs with.
type schemaInfo struct {
	context string
	hash    string
}
