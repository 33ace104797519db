package entity

import "time"

type ArtifactKind string

const (
	ArtifactRisk     ArtifactKind = "risk"
	ArtifactControl  ArtifactKind = "control"
	ArtifactQuery    ArtifactKind = "query"
	ArtifactGuidance ArtifactKind = "guidance"
)

// EmbeddingRecord is unique per (Kind, ArtifactId).
type EmbeddingRecord struct {
	Kind        ArtifactKind
	ArtifactId  string
	OwnerId     string
	Vector      []float32
	Title       string
	Description string
	Category    string
	Reference   string
	Intent      string
	Context     map[string]interface{}
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
