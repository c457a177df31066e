package models

// Intent is the classified purpose of a user message.
type Intent string

const (
	IntentSQLQuery            Intent = "SQL_QUERY"
	IntentChartRequest        Intent = "CHART_REQUEST"
	IntentSummaryRequest      Intent = "SUMMARY_REQUEST"
	IntentReportRequest       Intent = "REPORT_REQUEST"
	IntentClarificationNeeded Intent = "CLARIFICATION_NEEDED"
	IntentGeneralChat         Intent = "GENERAL_CHAT"
	IntentOutOfScope          Intent = "OUT_OF_SCOPE"
)

// Action is one executable step of a planned turn.
type Action string

const (
	ActionRunSQL           Action = "RUN_SQL"
	ActionGenerateChart    Action = "GENERATE_CHART"
	ActionGenerateSummary  Action = "GENERATE_SUMMARY"
	ActionGenerateReport   Action = "GENERATE_REPORT"
	ActionGeneralChat      Action = "GENERAL_CHAT"
	ActionAskClarification Action = "ASK_CLARIFICATION"
	ActionOutOfScope       Action = "OUT_OF_SCOPE"
)

// ParseAction maps a raw string to a known Action. Unknown values are
// rejected rather than defaulted so planners can filter them out.
func ParseAction(raw string) (Action, bool) {
	switch Action(raw) {
	case ActionRunSQL, ActionGenerateChart, ActionGenerateSummary,
		ActionGenerateReport, ActionGeneralChat, ActionAskClarification,
		ActionOutOfScope:
		return Action(raw), true
	}
	return "", false
}

// Classification is the parsed result of the intent-classification stage.
// Actions, when present, overrides the single-action mapping of Intent.
type Classification struct {
	Intent  Intent   `json:"intent"`
	Reason  string   `json:"reason,omitempty"`
	Actions []string `json:"actions,omitempty"`
}
