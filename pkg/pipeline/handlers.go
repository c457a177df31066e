package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tably-ai/tably/pkg/llm"
	"github.com/tably-ai/tably/pkg/models"
)

const notConfiguredText = "The assistant is not configured with a completion provider, so it cannot answer data questions yet."

const outOfScopeText = "That question is outside what this assistant can help with."

// turnState carries the mutable turn-level outcome across action
// handlers: the status and any pending clarification question.
type turnState struct {
	status  models.TurnStatus
	pending string
}

// runAction executes one planned action, threading the conversation
// context forward. SQL execution failures degrade to text parts; any
// other error returned here is fatal for the whole turn.
func (o *Orchestrator) runAction(ctx context.Context, trace *Trace, action models.Action, question string, cc models.ConversationContext, st *turnState) (models.ConversationContext, error) {
	switch action {
	case models.ActionRunSQL:
		return o.handleRunSQL(ctx, trace, question, cc)
	case models.ActionGenerateChart:
		return o.handleChart(ctx, trace, question, cc)
	case models.ActionGenerateSummary:
		return o.handleNarrative(ctx, trace, question, cc, o.resolver.Summarize)
	case models.ActionGenerateReport:
		return o.handleNarrative(ctx, trace, question, cc, o.resolver.Report)
	case models.ActionGeneralChat:
		return o.handleChat(ctx, trace, question, cc)
	case models.ActionAskClarification:
		return o.handleAskClarification(ctx, trace, question, cc, st)
	case models.ActionOutOfScope:
		return addText(cc, outOfScopeText), nil
	}
	return cc, fmt.Errorf("unplanned action %q", action)
}

func (o *Orchestrator) handleRunSQL(ctx context.Context, trace *Trace, question string, cc models.ConversationContext) (models.ConversationContext, error) {
	query, err := o.resolver.GenerateSQL(ctx, trace, o.schemaSnapshot(), question, o.businessDate())
	if err != nil {
		return addText(cc, sqlFailureText(err)), nil
	}

	table, err := o.executor.Run(ctx, query)
	if err != nil {
		// Failed generated SQL is a user-visible outcome, not a crash.
		return addText(cc, fmt.Sprintf("The query could not be executed: %v", err)), nil
	}

	explanation := o.resolver.ExplainSQL(ctx, trace, o.schemaSnapshot(), question, query, o.businessDate())
	content, err := json.Marshal(table)
	if err != nil {
		return cc, fmt.Errorf("encode table: %w", err)
	}
	return AddPart(cc, models.PartTable, content, explanation, query), nil
}

func (o *Orchestrator) handleChart(ctx context.Context, trace *Trace, question string, cc models.ConversationContext) (models.ConversationContext, error) {
	cfg, err := o.resolver.GenerateChart(ctx, trace, o.schemaSnapshot(), question, o.businessDate())
	if err != nil {
		return addText(cc, sqlFailureText(err)), nil
	}

	switch {
	case cfg.SQL != "":
		table, err := o.executor.Run(ctx, cfg.SQL)
		if err != nil {
			return addText(cc, fmt.Sprintf("The chart query could not be executed: %v", err)), nil
		}
		cfg.Data = &table
	case cc.LastTableData != nil:
		cfg.Data = cc.LastTableData
		cfg.SQL = cc.LastSQL
	}

	content, err := json.Marshal(cfg)
	if err != nil {
		return cc, fmt.Errorf("encode chart: %w", err)
	}
	explanation := cfg.Title
	if explanation == "" {
		explanation = fmt.Sprintf("Chart for: %s", question)
	}
	return AddPart(cc, models.PartChart, content, explanation, cfg.SQL), nil
}

// handleNarrative drives both summary and report generation: reuse the
// turn's most recent table data, or fetch it first when none exists.
func (o *Orchestrator) handleNarrative(ctx context.Context, trace *Trace, question string, cc models.ConversationContext,
	generate func(context.Context, *Trace, string, string, models.Table) (string, bool)) (models.ConversationContext, error) {

	table := cc.LastTableData
	if table == nil {
		query, err := o.resolver.GenerateSQL(ctx, trace, o.schemaSnapshot(), question, o.businessDate())
		if err != nil {
			return addText(cc, sqlFailureText(err)), nil
		}
		fetched, err := o.executor.Run(ctx, query)
		if err != nil {
			return addText(cc, fmt.Sprintf("The query could not be executed: %v", err)), nil
		}
		table = &fetched
		// Record the fetch so a later action in this turn can reuse it.
		cc.LastTableData = table
		cc.LastSQL = query
	}

	text, ok := generate(ctx, trace, question, tableFingerprint(*table), *table)
	if !ok {
		text = notConfiguredText
	}
	return addText(cc, text), nil
}

func (o *Orchestrator) handleChat(ctx context.Context, trace *Trace, question string, cc models.ConversationContext) (models.ConversationContext, error) {
	text, ok := o.resolver.Chat(ctx, trace, question)
	if !ok {
		text = notConfiguredText
	}
	return addText(cc, text), nil
}

func (o *Orchestrator) handleAskClarification(ctx context.Context, trace *Trace, question string, cc models.ConversationContext, st *turnState) (models.ConversationContext, error) {
	q := o.resolver.AskClarification(ctx, trace, question)
	st.status = models.TurnIncomplete
	st.pending = q
	return addText(cc, q), nil
}

func addText(cc models.ConversationContext, text string) models.ConversationContext {
	content, _ := json.Marshal(text)
	return AddPart(cc, models.PartText, content, "", "")
}

// sqlFailureText renders SQL-generation failures: a typed cannot-answer
// carries the model's reason, anything else gets the generic fallback.
func sqlFailureText(err error) string {
	var ca *llm.CannotAnswerError
	if errors.As(err, &ca) {
		return fmt.Sprintf("I can't answer that from the available data: %s", ca.Reason)
	}
	if errors.Is(err, llm.ErrNotConfigured) {
		return notConfiguredText
	}
	return "SQL generation is currently unavailable; please try again."
}

// tableFingerprint keys diversity-cached narratives to the data they
// describe, so new data means new phrasing.
func tableFingerprint(t models.Table) string {
	b, _ := json.Marshal(t)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:16]
}
