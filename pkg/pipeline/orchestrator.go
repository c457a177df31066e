// Package pipeline composes the turn state machine: correction,
// clarification and follow-up resolution, classification, planning, and
// ordered action execution, all behind the response cache.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tably-ai/tably/pkg/audit"
	"github.com/tably-ai/tably/pkg/exec"
	"github.com/tably-ai/tably/pkg/models"
	"github.com/tably-ai/tably/pkg/schema"
)

// Orchestrator drives one full turn: user message in, assembled
// response out. It holds only immutable collaborators; all per-turn
// state lives in local values, so concurrent turns are independent.
type Orchestrator struct {
	resolver *Resolver
	executor exec.QueryExecutor
	schema   schema.Provider
	auditor  *audit.Logger
	log      *zap.Logger
	now      func() time.Time
}

// New wires an Orchestrator with its collaborators. auditor may be nil
// to run without an interaction log.
func New(resolver *Resolver, executor exec.QueryExecutor, sp schema.Provider, auditor *audit.Logger, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		resolver: resolver,
		executor: executor,
		schema:   sp,
		auditor:  auditor,
		log:      log,
		now:      time.Now,
	}
}

func (o *Orchestrator) schemaSnapshot() schemaInfo {
	return schemaInfo{context: o.schema.Context(), hash: o.schema.Hash()}
}

func (o *Orchestrator) businessDate() string {
	return o.now().UTC().Format("2006-01-02")
}

// RunTurn executes the turn state machine. Stages run strictly in
// sequence; each consults the cache through the resolver. Stage-level
// failures degrade to deterministic fallbacks, but an unexpected error
// inside an action handler aborts the whole turn: partial multi-action
// responses are never returned.
func (o *Orchestrator) RunTurn(ctx context.Context, req models.TurnRequest) (models.TurnResponse, error) {
	start := o.now()
	trace := &Trace{}
	turnID := uuid.NewString()

	resolved := o.resolver.Correct(ctx, trace, req.Message)

	discarded := false
	if req.LastAIWasClarification {
		clarification, priorQuestion := req.LastClarification()
		if clarification != "" {
			isReply, merged := o.resolver.ResolveClarification(ctx, trace, clarification, priorQuestion, resolved)
			if isReply && merged != "" {
				resolved = merged
			} else {
				// The pending question is abandoned; the new message
				// proceeds on its own.
				discarded = true
			}
		}
	}

	if prev := req.LastUserQuestion(); prev != "" {
		if isFollowUp, rewritten := o.resolver.ResolveFollowUp(ctx, trace, prev, resolved); isFollowUp && rewritten != "" {
			resolved = rewritten
		}
	}

	cls := o.resolver.Classify(ctx, trace, resolved)
	actions := Plan(cls)

	cc := models.ConversationContext{}
	st := &turnState{status: models.TurnComplete}
	for _, action := range actions {
		var err error
		cc, err = o.runAction(ctx, trace, action, resolved, cc, st)
		if err != nil {
			return models.TurnResponse{}, fmt.Errorf("action %s: %w", action, err)
		}
	}

	resp := models.TurnResponse{
		TurnID:                    turnID,
		Prompt:                    req.Message,
		ResolvedPrompt:            resolved,
		Intent:                    cls.Intent,
		Parts:                     cc.Parts,
		Status:                    st.status,
		PendingClarification:      st.pending,
		PreviousQuestionDiscarded: discarded,
		Trace:                     trace.Entries(),
	}

	o.record(ctx, resp, o.now().Sub(start))
	return resp, nil
}

// record writes the assembled response to the interaction log. The log
// is a sink: failures are logged, never surfaced to the caller.
func (o *Orchestrator) record(ctx context.Context, resp models.TurnResponse, latency time.Duration) {
	if o.auditor == nil {
		return
	}
	body, err := json.Marshal(resp.Parts)
	if err != nil {
		o.log.Warn("encode interaction parts", zap.Error(err))
		return
	}
	_, err = o.auditor.Record(ctx, models.Interaction{
		ID:             resp.TurnID,
		Prompt:         resp.Prompt,
		ResolvedPrompt: resp.ResolvedPrompt,
		Intent:         resp.Intent,
		Status:         resp.Status,
		Response:       string(body),
		LatencyMs:      latency.Milliseconds(),
	})
	if err != nil {
		o.log.Warn("record interaction failed", zap.Error(err))
	}
}
