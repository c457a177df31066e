package pipeline

import "github.com/tably-ai/tably/pkg/models"

// intentActions maps each intent to its single planned action.
var intentActions = map[models.Intent]models.Action{
	models.IntentSQLQuery:            models.ActionRunSQL,
	models.IntentChartRequest:        models.ActionGenerateChart,
	models.IntentSummaryRequest:      models.ActionGenerateSummary,
	models.IntentReportRequest:       models.ActionGenerateReport,
	models.IntentClarificationNeeded: models.ActionAskClarification,
	models.IntentGeneralChat:         models.ActionGeneralChat,
	models.IntentOutOfScope:          models.ActionOutOfScope,
}

// Plan maps a classification to the ordered list of actions to execute.
// An explicit action list wins when it contains at least one recognized
// action (unrecognized entries are dropped, source order preserved);
// otherwise the intent maps through the fixed table, and an unknown
// intent defaults to general chat.
func Plan(cls models.Classification) []models.Action {
	if len(cls.Actions) > 0 {
		var planned []models.Action
		for _, raw := range cls.Actions {
			if a, ok := models.ParseAction(raw); ok {
				planned = append(planned, a)
			}
		}
		if len(planned) > 0 {
			return planned
		}
	}

	if a, ok := intentActions[cls.Intent]; ok {
		return []models.Action{a}
	}
	return []models.Action{models.ActionGeneralChat}
}
