package contract

import "context"

type NodeLabel string

const (
	LabelUser    NodeLabel = "User"
	LabelRisk    NodeLabel = "Risk"
	LabelControl NodeLabel = "Control"
)

type RelationshipType string

const (
	RelHasRisk         RelationshipType = "HAS_RISK"
	RelSelectedControl RelationshipType = "SELECTED_CONTROL"
	RelMitigates       RelationshipType = "MITIGATES"
)

type NodeRef struct {
	Label NodeLabel
	Id    string
}

// CategoryStat counts a user's risks in one category and the controls mitigating them.
type CategoryStat struct {
	Category string `json:"category"`
	Risks    int    `json:"risks"`
	Controls int    `json:"controls"`
}

// PeerControl is a control selected by other users of the same organisational domain.
type PeerControl struct {
	Title          string `json:"title"`
	DomainCategory string `json:"domain_category"`
	AnnexReference string `json:"annex_reference"`
	UsageCount     int    `json:"usage_count"`
}

// GraphStore mirrors ownership and mitigation relationships. All writes are MERGEs.
type GraphStore interface {
	MergeNode(ctx context.Context, node NodeRef, props map[string]any) error
	// MergeRelationship merges both endpoints and the edge in one statement.
	MergeRelationship(ctx context.Context, from NodeRef, rel RelationshipType, to NodeRef) error
	DeleteNode(ctx context.Context, node NodeRef) error
	CategoryStats(ctx context.Context, userId string) ([]CategoryStat, error)
	PeerControls(ctx context.Context, domain, excludeUserId string, limit int) ([]PeerControl, error)
}
