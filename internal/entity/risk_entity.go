package entity

import (
	"strings"
	"time"
)

const DefaultRiskProgress = "Identified"

// Risk is a finalized risk from the user's register. The document store
// copy is authoritative; the graph keeps a shadow node with the same Id.
type Risk struct {
	Id                string     `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Category          string     `json:"category"`
	Likelihood        string     `json:"likelihood"`
	Impact            string     `json:"impact"`
	TreatmentStrategy string     `json:"treatment_strategy"`
	Department        string     `json:"department,omitempty"`
	RiskOwner         string     `json:"risk_owner,omitempty"`
	Progress          string     `json:"progress,omitempty"`
	UserId            string     `json:"user_id"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
}

// DisplayName prefers the title and falls back to the description.
func (r *Risk) DisplayName() string {
	if strings.TrimSpace(r.Title) != "" {
		return r.Title
	}
	return r.Description
}

// SearchText is what gets embedded for the risk.
func (r *Risk) SearchText() string {
	parts := []string{r.Title, r.Description, r.Category}
	var b strings.Builder
	for _, p := range parts {
		if p = strings.TrimSpace(p); p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(". ")
		}
		b.WriteString(p)
	}
	return b.String()
}
