package entity

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrMissingRequiredField = errors.New("missing required field")

type DomainCategory string

const (
	DomainOrganizational DomainCategory = "Organizational"
	DomainPeople         DomainCategory = "People"
	DomainPhysical       DomainCategory = "Physical"
	DomainTechnological  DomainCategory = "Technological"
)

var domainPrefixes = map[DomainCategory]string{
	DomainOrganizational: "A.5.",
	DomainPeople:         "A.6.",
	DomainPhysical:       "A.7.",
	DomainTechnological:  "A.8.",
}

// AnnexPrefix is the Annex A clause prefix that owns the category.
func (d DomainCategory) AnnexPrefix() string {
	return domainPrefixes[d]
}

func (d DomainCategory) Valid() bool {
	_, ok := domainPrefixes[d]
	return ok
}

// ParseDomainCategory accepts "Technological", "technological controls"
// or an Annex reference such as "A.8.5".
func ParseDomainCategory(raw string) (DomainCategory, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimSuffix(s, " controls")
	for d, prefix := range domainPrefixes {
		if s == strings.ToLower(string(d)) || strings.HasPrefix(s, strings.ToLower(prefix)) {
			return d, true
		}
	}
	return "", false
}

// Control is a mitigating measure tied to exactly one risk.
type Control struct {
	Id                     string         `json:"id"`
	ControlId              string         `json:"control_id"`
	Title                  string         `json:"title"`
	Description            string         `json:"description"`
	DomainCategory         DomainCategory `json:"domain_category"`
	AnnexReference         string         `json:"annex_reference"`
	ControlStatement       string         `json:"control_statement"`
	ImplementationGuidance string         `json:"implementation_guidance"`
	RiskId                 string         `json:"risk_id"`
	UserId                 string         `json:"user_id"`
	CreatedAt              time.Time      `json:"created_at"`
}

// Validate reports the identity fields that must be set before any store write.
func (c *Control) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Id) == "" {
		missing = append(missing, "id")
	}
	if strings.TrimSpace(c.ControlId) == "" {
		missing = append(missing, "control_id")
	}
	if strings.TrimSpace(c.RiskId) == "" {
		missing = append(missing, "risk_id")
	}
	if strings.TrimSpace(c.UserId) == "" {
		missing = append(missing, "user_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingRequiredField, strings.Join(missing, ", "))
	}
	return nil
}

// SearchText is what gets embedded for the control.
func (c *Control) SearchText() string {
	return strings.TrimSpace(c.Title + ". " + c.Description)
}

// ControlIdFor formats the human-facing identifier, CTRL-<risk-id>-<seq>.
func ControlIdFor(riskId string, seq int) string {
	return fmt.Sprintf("CTRL-%s-%03d", riskId, seq)
}
