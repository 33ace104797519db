package implementation

import (
	"context"
	"fmt"

	"iso-risk-agent-be/internal/entity"
	"iso-risk-agent-be/internal/mapper"
	"iso-risk-agent-be/internal/model"
	"iso-risk-agent-be/internal/repository/contract"
	"iso-risk-agent-be/internal/repository/scope"
	"iso-risk-agent-be/internal/repository/specification"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PgVectorIndex struct {
	db     *gorm.DB
	mapper *mapper.EmbeddingMapper
}

func NewPgVectorIndex(db *gorm.DB) contract.VectorIndex {
	return &PgVectorIndex{
		db:     db,
		mapper: mapper.NewEmbeddingMapper(),
	}
}

func (r *PgVectorIndex) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *PgVectorIndex) Search(ctx context.Context, q contract.VectorQuery) ([]*contract.ScoredEmbedding, error) {
	// Cosine distance in pgvector is 1 - cosine_similarity.
	type result struct {
		model.ArtifactEmbedding
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(q.Vector)

	query := r.applySpecifications(
		r.db.WithContext(ctx).Table(model.ArtifactEmbedding{}.TableName()),
		specification.ByKind{Kind: q.Kind},
		specification.ByOwner{OwnerId: q.OwnerId},
	)
	err := query.
		Select("artifact_embeddings.*, 1 - (embedding_value <=> ?) AS similarity", queryVector).
		Scopes(scope.OrderByDesc("similarity"), scope.Limit(q.Limit, 10)).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredEmbedding, len(results))
	for i := range results {
		scored[i] = &contract.ScoredEmbedding{
			Record:     r.mapper.ToEntity(&results[i].ArtifactEmbedding),
			Similarity: results[i].Similarity,
		}
	}
	return scored, nil
}

func (r *PgVectorIndex) Upsert(ctx context.Context, record *entity.EmbeddingRecord) error {
	m, err := r.mapper.ToModel(record)
	if err != nil {
		return fmt.Errorf("encode embedding context: %w", err)
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "kind"}, {Name: "artifact_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"owner_id", "embedding_value", "title", "description",
			"category", "reference", "intent", "context", "updated_at",
		}),
	}).Create(m).Error
}

func (r *PgVectorIndex) Delete(ctx context.Context, kind entity.ArtifactKind, artifactId string) error {
	return r.applySpecifications(r.db.WithContext(ctx), specification.ByArtifact{Kind: kind, ArtifactId: artifactId}).
		Delete(&model.ArtifactEmbedding{}).Error
}

// MigrateVectorIndex creates the table and resizes the vector column to the
// configured embedding dimension.
func MigrateVectorIndex(db *gorm.DB, dimension int) error {
	if err := db.AutoMigrate(&model.ArtifactEmbedding{}); err != nil {
		return err
	}
	if dimension > 0 && dimension != 1536 {
		stmt := fmt.Sprintf("ALTER TABLE artifact_embeddings ALTER COLUMN embedding_value TYPE vector(%d)", dimension)
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return db.Exec("CREATE INDEX IF NOT EXISTS idx_artifact_embeddings_hnsw ON artifact_embeddings USING hnsw (embedding_value vector_cosine_ops)").Error
}
