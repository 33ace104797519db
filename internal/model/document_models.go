package model

import "time"

// RiskDocument is the finalized_risks collection layout.
type RiskDocument struct {
	Id                string     `bson:"id"`
	Title             string     `bson:"title"`
	Description       string     `bson:"description"`
	Category          string     `bson:"category"`
	Likelihood        string     `bson:"likelihood"`
	Impact            string     `bson:"impact"`
	TreatmentStrategy string     `bson:"treatment_strategy"`
	Department        string     `bson:"department,omitempty"`
	RiskOwner         string     `bson:"risk_owner,omitempty"`
	RiskProgress      string     `bson:"risk_progress,omitempty"`
	UserId            string     `bson:"user_id"`
	CreatedAt         time.Time  `bson:"created_at"`
	UpdatedAt         *time.Time `bson:"updated_at,omitempty"`
}

// ControlDocument is the controls collection layout.
type ControlDocument struct {
	Id                     string    `bson:"id"`
	ControlId              string    `bson:"control_id"`
	Title                  string    `bson:"title"`
	Description            string    `bson:"description"`
	DomainCategory         string    `bson:"domain_category"`
	AnnexReference         string    `bson:"annex_reference"`
	ControlStatement       string    `bson:"control_statement"`
	ImplementationGuidance string    `bson:"implementation_guidance"`
	RiskId                 string    `bson:"risk_id"`
	UserId                 string    `bson:"user_id"`
	CreatedAt              time.Time `bson:"created_at"`
}

type UserDocument struct {
	Id               string `bson:"id"`
	Username         string `bson:"username"`
	Email            string `bson:"email"`
	OrganizationName string `bson:"organization_name"`
	Domain           string `bson:"domain"`
	Location         string `bson:"location"`
}
