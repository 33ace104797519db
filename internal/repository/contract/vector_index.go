package contract

import (
	"context"

	"iso-risk-agent-be/internal/entity"
)

type VectorQuery struct {
	Vector  []float32
	Kind    entity.ArtifactKind
	OwnerId string // empty means any owner
	Limit   int
}

type ScoredEmbedding struct {
	Record     *entity.EmbeddingRecord
	Similarity float64 // cosine similarity, higher is closer
}

type VectorIndex interface {
	// Search returns matches ordered by descending similarity.
	Search(ctx context.Context, query VectorQuery) ([]*ScoredEmbedding, error)
	// Upsert replaces any existing record with the same (Kind, ArtifactId).
	Upsert(ctx context.Context, record *entity.EmbeddingRecord) error
	Delete(ctx context.Context, kind entity.ArtifactKind, artifactId string) error
}
