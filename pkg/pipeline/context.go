package pipeline

import (
	"encoding/json"

	"github.com/tably-ai/tably/pkg/models"
)

// AddPart folds one action result into the running conversation
// context, returning a new context value; the input is never mutated.
//
// Table parts refresh LastTableData and LastSQL. Chart parts refresh
// LastChartConfig, with LastSQL taken from the chart content's own sql
// field (falling back to the passed sqlQuery). Text parts update only
// parts and LastExplanation, so data fetched earlier in the turn stays
// available to later summary or report actions.
func AddPart(cc models.ConversationContext, kind models.PartKind, content json.RawMessage, explanation, sqlQuery string) models.ConversationContext {
	part := models.ResultPart{
		Kind:        kind,
		Content:     content,
		Explanation: explanation,
		SQLQuery:    sqlQuery,
	}

	next := cc
	next.Parts = append(append([]models.ResultPart(nil), cc.Parts...), part)
	next.LastExplanation = explanation

	switch kind {
	case models.PartTable:
		var tbl models.Table
		if err := json.Unmarshal(content, &tbl); err == nil {
			next.LastTableData = &tbl
		}
		next.LastSQL = sqlQuery
	case models.PartChart:
		next.LastChartConfig = content
		var probe struct {
			SQL string `json:"sql"`
		}
		if err := json.Unmarshal(content, &probe); err == nil && probe.SQL != "" {
			next.LastSQL = probe.SQL
		} else {
			next.LastSQL = sqlQuery
		}
		var cfg models.ChartConfig
		if err := json.Unmarshal(content, &cfg); err == nil && cfg.Data != nil {
			next.LastTableData = cfg.Data
		}
	case models.PartText:
		// Intentionally leaves table, sql, and chart state untouched.
	}
	return next
}
