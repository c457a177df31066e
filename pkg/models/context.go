package models

import "encoding/json"

// ConversationContext is the running state of a single turn's action
// execution. It is a value: each update produces a new context, and the
// whole thing is discarded when the turn ends.
//
// LastTableData and LastSQL always reflect the most recent table or
// chart part. Text parts never overwrite them, so a summary or report
// action can reuse data fetched before an intervening text-only step.
type ConversationContext struct {
	Parts           []ResultPart
	LastTableData   *Table
	LastSQL         string
	LastChartConfig json.RawMessage
	LastExplanation string
}
