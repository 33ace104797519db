package entity

import "time"

// Activity is one entry in a user's register history, derived from a domain event.
type Activity struct {
	Id         string                 `json:"id"`
	UserId     string                 `json:"user_id"`
	Type       string                 `json:"type"`
	Summary    string                 `json:"summary"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}
