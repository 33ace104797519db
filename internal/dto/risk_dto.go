package dto

import "time"

type CreateRiskRequest struct {
	Title             string `json:"title" validate:"required,max=300"`
	Description       string `json:"description" validate:"required"`
	Category          string `json:"category" validate:"required"`
	Likelihood        string `json:"likelihood" validate:"omitempty,oneof=Rare Unlikely Possible Likely 'Almost Certain'"`
	Impact            string `json:"impact" validate:"omitempty,oneof=Insignificant Minor Moderate Major Severe"`
	TreatmentStrategy string `json:"treatment_strategy" validate:"omitempty,oneof=Mitigate Transfer Avoid Accept"`
	Department        string `json:"department"`
	RiskOwner         string `json:"risk_owner"`
	Progress          string `json:"progress"`
}

type UpdateRiskRequest struct {
	Id string `json:"-"`
	CreateRiskRequest
}

type RiskResponse struct {
	Id                string     `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Category          string     `json:"category"`
	Likelihood        string     `json:"likelihood,omitempty"`
	Impact            string     `json:"impact,omitempty"`
	TreatmentStrategy string     `json:"treatment_strategy,omitempty"`
	Department        string     `json:"department,omitempty"`
	RiskOwner         string     `json:"risk_owner,omitempty"`
	Progress          string     `json:"progress,omitempty"`
	ControlCount      int        `json:"control_count"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
}

// PublishIndexRiskMessage is the payload queued for asynchronous risk indexing.
type PublishIndexRiskMessage struct {
	RiskId string `json:"risk_id"`
	UserId string `json:"user_id"`
}
