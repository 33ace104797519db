package dto

import "time"

type ControlResponse struct {
	Id                     string    `json:"id"`
	ControlId              string    `json:"control_id"`
	RiskId                 string    `json:"risk_id"`
	Title                  string    `json:"title"`
	Description            string    `json:"description"`
	DomainCategory         string    `json:"domain_category"`
	AnnexReference         string    `json:"annex_reference,omitempty"`
	ControlStatement       string    `json:"control_statement,omitempty"`
	ImplementationGuidance string    `json:"implementation_guidance,omitempty"`
	CreatedAt              time.Time `json:"created_at"`
}

type ListControlsRequest struct {
	DomainCategory string `query:"domain" validate:"omitempty,oneof=Organizational People Physical Technological"`
	Keyword        string `query:"q" validate:"omitempty,max=200"`
}

// DeleteControlResponse reports which secondary stores could not be cleaned up.
type DeleteControlResponse struct {
	Id            string   `json:"id"`
	CleanupFailed []string `json:"cleanup_failed,omitempty"`
}
