package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotConfigured is returned when no provider credential is set.
var ErrNotConfigured = errors.New("completion provider not configured")

// CannotAnswerError is the domain signal from SQL generation that no
// derivable query exists for the question. It is surfaced to the user
// as an explanation, never as a crash.
type CannotAnswerError struct {
	Reason string
}

func (e *CannotAnswerError) Error() string {
	return fmt.Sprintf("cannot answer: %s", e.Reason)
}

// cannotAnswerPrefix is the wire convention the SQL generation prompt
// instructs the model to use. It is parsed exactly once, here, at the
// provider boundary.
const cannotAnswerPrefix = "CANNOT_ANSWER:"

// DetectCannotAnswer inspects a raw SQL-generation reply. If the model
// declined, it returns a CannotAnswerError carrying the stated reason;
// otherwise it returns the reply trimmed.
func DetectCannotAnswer(reply string) (string, error) {
	trimmed := strings.TrimSpace(reply)
	if strings.HasPrefix(trimmed, cannotAnswerPrefix) {
		reason := strings.TrimSpace(strings.TrimPrefix(trimmed, cannotAnswerPrefix))
		if reason == "" {
			reason = "the question has no derivable query"
		}
		return "", &CannotAnswerError{Reason: reason}
	}
	return trimmed, nil
}
