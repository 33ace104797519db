package dto

import "time"

type ActivityResponse struct {
	Id         string                 `json:"id"`
	Type       string                 `json:"type"`
	Summary    string                 `json:"summary"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}
