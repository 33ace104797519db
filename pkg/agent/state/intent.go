package state

import (
	"errors"
	"fmt"
)

type IntentKind string

const (
	IntentGenerateForRisk     IntentKind = "generate_controls_for_risk"
	IntentGenerateForAllRisks IntentKind = "generate_controls_for_all_risks"
	IntentQueryGeneral        IntentKind = "query_controls_general"
	IntentQueryByCategory     IntentKind = "query_controls_by_category"
	IntentRelationshipQuery   IntentKind = "relationship_query"
	IntentOther               IntentKind = "other"
)

var knownIntents = map[IntentKind]bool{
	IntentGenerateForRisk:     true,
	IntentGenerateForAllRisks: true,
	IntentQueryGeneral:        true,
	IntentQueryByCategory:     true,
	IntentRelationshipQuery:   true,
	IntentOther:               true,
}

func (k IntentKind) Valid() bool { return knownIntents[k] }

// IsGeneration reports whether the intent leads to control generation.
func (k IntentKind) IsGeneration() bool {
	return k == IntentGenerateForRisk || k == IntentGenerateForAllRisks
}

type RiskParams struct {
	RiskId string `json:"risk_id"`
}

// AllRisksParams optionally narrows bulk generation to one risk category.
type AllRisksParams struct {
	Category string `json:"category,omitempty"`
}

type CategoryParams struct {
	Category string `json:"category"`
}

// QueryParams carries what the classifier recognised in a free-form control question.
type QueryParams struct {
	Domain        string   `json:"domain,omitempty"`
	Keywords      []string `json:"keywords,omitempty"`
	AnnexPrefixes []string `json:"annex_prefixes,omitempty"`
}

// Intent is a tagged union: exactly the member matching Kind is set,
// except for kinds that carry no parameters.
type Intent struct {
	Kind     IntentKind      `json:"kind"`
	Risk     *RiskParams     `json:"risk,omitempty"`
	AllRisks *AllRisksParams `json:"all_risks,omitempty"`
	Category *CategoryParams `json:"category,omitempty"`
	Query    *QueryParams    `json:"query,omitempty"`
}

var ErrInvalidIntent = errors.New("invalid intent")

func OtherIntent() Intent { return Intent{Kind: IntentOther} }

func GenerateForRisk(riskId string) Intent {
	return Intent{Kind: IntentGenerateForRisk, Risk: &RiskParams{RiskId: riskId}}
}

func GenerateForAllRisks(category string) Intent {
	return Intent{Kind: IntentGenerateForAllRisks, AllRisks: &AllRisksParams{Category: category}}
}

func QueryByCategory(category string) Intent {
	return Intent{Kind: IntentQueryByCategory, Category: &CategoryParams{Category: category}}
}

func QueryGeneral(p QueryParams) Intent {
	return Intent{Kind: IntentQueryGeneral, Query: &p}
}

func RelationshipQuery() Intent { return Intent{Kind: IntentRelationshipQuery} }

// Validate enforces the union shape.
func (i Intent) Validate() error {
	if !i.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidIntent, i.Kind)
	}

	set := 0
	for _, present := range []bool{i.Risk != nil, i.AllRisks != nil, i.Category != nil, i.Query != nil} {
		if present {
			set++
		}
	}

	switch i.Kind {
	case IntentGenerateForRisk:
		if i.Risk == nil || i.Risk.RiskId == "" {
			return fmt.Errorf("%w: %s requires a risk id", ErrInvalidIntent, i.Kind)
		}
	case IntentGenerateForAllRisks:
		if i.AllRisks == nil {
			return fmt.Errorf("%w: %s requires all_risks params", ErrInvalidIntent, i.Kind)
		}
	case IntentQueryByCategory:
		if i.Category == nil || i.Category.Category == "" {
			return fmt.Errorf("%w: %s requires a category", ErrInvalidIntent, i.Kind)
		}
	case IntentQueryGeneral:
		if i.Query == nil {
			return fmt.Errorf("%w: %s requires query params", ErrInvalidIntent, i.Kind)
		}
	case IntentRelationshipQuery, IntentOther:
		if set != 0 {
			return fmt.Errorf("%w: %s takes no params", ErrInvalidIntent, i.Kind)
		}
		return nil
	}

	if set != 1 {
		return fmt.Errorf("%w: %s must carry exactly one param set", ErrInvalidIntent, i.Kind)
	}
	return nil
}
