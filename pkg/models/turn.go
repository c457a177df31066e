package models

// ChatMessage represents a single message in a chat conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TurnStatus reports whether a turn reached a terminal answer or is
// waiting on the user to resolve a clarification.
type TurnStatus string

const (
	TurnComplete   TurnStatus = "complete"
	TurnIncomplete TurnStatus = "incomplete"
)

// TurnRequest carries one inbound user message plus the conversational
// context the caller holds: prior turns and whether the assistant's last
// output was a clarification question.
type TurnRequest struct {
	Message                string        `json:"message"`
	History                []ChatMessage `json:"history,omitempty"`
	LastAIWasClarification bool          `json:"last_ai_was_clarification,omitempty"`
}

// LastUserQuestion returns the most recent user message in the history,
// or "" if there is none.
func (r TurnRequest) LastUserQuestion() string {
	for i := len(r.History) - 1; i >= 0; i-- {
		if r.History[i].Role == "user" {
			return r.History[i].Content
		}
	}
	return ""
}

// LastClarification returns the assistant's most recent message (the
// clarification question) and the user question that preceded it.
func (r TurnRequest) LastClarification() (clarification, priorQuestion string) {
	for i := len(r.History) - 1; i >= 0; i-- {
		if r.History[i].Role != "assistant" {
			continue
		}
		clarification = r.History[i].Content
		for j := i - 1; j >= 0; j-- {
			if r.History[j].Role == "user" {
				priorQuestion = r.History[j].Content
				break
			}
		}
		return clarification, priorQuestion
	}
	return "", ""
}

// TurnResponse is the fully assembled output of one turn.
type TurnResponse struct {
	TurnID                    string       `json:"turn_id"`
	Prompt                    string       `json:"prompt"`
	ResolvedPrompt            string       `json:"resolved_prompt"`
	Intent                    Intent       `json:"intent"`
	Parts                     []ResultPart `json:"parts"`
	Status                    TurnStatus   `json:"status"`
	PendingClarification      string       `json:"pending_clarification,omitempty"`
	PreviousQuestionDiscarded bool         `json:"previous_question_discarded,omitempty"`
	Trace                     []TraceEntry `json:"trace,omitempty"`
}

// Single returns the sole ResultPart when exactly one action ran.
func (r TurnResponse) Single() (ResultPart, bool) {
	if len(r.Parts) == 1 {
		return r.Parts[0], true
	}
	return ResultPart{}, false
}
