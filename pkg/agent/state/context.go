package state

import (
	"iso-risk-agent-be/internal/entity"
	"iso-risk-agent-be/internal/repository/contract"
)

type SourceKind string

const (
	SourceExisting SourceKind = "existing_controls"
	SourceText     SourceKind = "text_search"
	SourceVector   SourceKind = "vector_similarity"
	SourceGuidance SourceKind = "reference_guidance"
)

// AllSources in trust order, most trusted first.
var AllSources = []SourceKind{SourceExisting, SourceText, SourceVector, SourceGuidance}

// Trust is 1 for the most trusted source.
func (s SourceKind) Trust() int {
	for i, k := range AllSources {
		if k == s {
			return i + 1
		}
	}
	return len(AllSources) + 1
}

func (s SourceKind) Label() string {
	switch s {
	case SourceExisting:
		return "your existing controls"
	case SourceText:
		return "keyword search"
	case SourceVector:
		return "semantic similarity"
	case SourceGuidance:
		return "ISO 27001 Annex A reference guidance"
	}
	return string(s)
}

// ContextItem is one fused artifact. Score is nil for sources that do not score.
type ContextItem struct {
	Key         string              `json:"key"`
	Kind        entity.ArtifactKind `json:"kind"`
	ArtifactId  string              `json:"artifact_id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Category    string              `json:"category,omitempty"`
	Reference   string              `json:"reference,omitempty"`
	Source      SourceKind          `json:"source"`
	Score       *float64            `json:"score,omitempty"`
	Control     *entity.Control     `json:"control,omitempty"`
	Risk        *entity.Risk        `json:"risk,omitempty"`
}

func ItemKey(kind entity.ArtifactKind, id string) string {
	return string(kind) + ":" + id
}

// GuidanceItem is an Annex A reference control, used to enrich prompts only.
type GuidanceItem struct {
	Reference   string  `json:"reference"`
	Title       string  `json:"title"`
	Domain      string  `json:"domain"`
	Description string  `json:"description,omitempty"`
	Score       float64 `json:"score,omitempty"`
}

type ContextBundle struct {
	Items          []ContextItem           `json:"items"`
	Guidance       []GuidanceItem          `json:"guidance,omitempty"`
	CategoryStats  []contract.CategoryStat `json:"category_stats,omitempty"`
	PeerControls   []contract.PeerControl  `json:"peer_controls,omitempty"`
	SourcesChecked []SourceKind            `json:"sources_checked"`
	SourceErrors   map[SourceKind]string   `json:"source_errors,omitempty"`
	Threshold      float64                 `json:"threshold"`
	// NoContext is set when every source failed; it is not the same as "nothing matched".
	NoContext bool `json:"no_context"`
}

// Empty reports a bundle with no primary evidence.
func (b *ContextBundle) Empty() bool {
	return b == nil || len(b.Items) == 0
}

// FailedSources lists failed sources in trust order.
func (b *ContextBundle) FailedSources() []SourceKind {
	if b == nil {
		return nil
	}
	var out []SourceKind
	for _, s := range AllSources {
		if _, ok := b.SourceErrors[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

// HealthySources lists checked sources that answered.
func (b *ContextBundle) HealthySources() []SourceKind {
	if b == nil {
		return nil
	}
	var out []SourceKind
	for _, s := range b.SourcesChecked {
		if _, failed := b.SourceErrors[s]; !failed {
			out = append(out, s)
		}
	}
	return out
}

// Controls returns the control artifacts among the items, in fused order.
func (b *ContextBundle) Controls() []*entity.Control {
	if b == nil {
		return nil
	}
	var out []*entity.Control
	for _, it := range b.Items {
		if it.Control != nil {
			out = append(out, it.Control)
		}
	}
	return out
}
