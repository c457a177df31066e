package models

import "time"

// Interaction is one completed turn as recorded in the interaction log.
// Response holds the assembled response parts as JSON.
type Interaction struct {
	ID             string     `json:"id"`
	Prompt         string     `json:"prompt"`
	ResolvedPrompt string     `json:"resolved_prompt"`
	Intent         Intent     `json:"intent"`
	Status         TurnStatus `json:"status"`
	Response       string     `json:"response"`
	LatencyMs      int64      `json:"latency_ms"`
	CreatedAt      time.Time  `json:"created_at"`
}

// InteractionQueryOpts filters interaction log queries.
type InteractionQueryOpts struct {
	ID     string
	Status TurnStatus
	Since  time.Time
	Limit  int
}

// InteractionStat is an aggregate count of turns per day and status.
type InteractionStat struct {
	Day    string `json:"day"`
	Status string `json:"status"`
	Count  int64  `json:"count"`
}
