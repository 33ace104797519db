package mapper

import (
	"encoding/json"

	"iso-risk-agent-be/internal/entity"
	"iso-risk-agent-be/internal/model"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type EmbeddingMapper struct{}

func NewEmbeddingMapper() *EmbeddingMapper {
	return &EmbeddingMapper{}
}

func (m *EmbeddingMapper) ToEntity(e *model.ArtifactEmbedding) *entity.EmbeddingRecord {
	if e == nil {
		return nil
	}

	var ctx map[string]interface{}
	if len(e.Context) > 0 {
		// Context is written by ToModel, a decode failure only loses metadata.
		_ = json.Unmarshal(e.Context, &ctx)
	}

	return &entity.EmbeddingRecord{
		Kind:        entity.ArtifactKind(e.Kind),
		ArtifactId:  e.ArtifactId,
		OwnerId:     e.OwnerId,
		Vector:      e.EmbeddingValue.Slice(),
		Title:       e.Title,
		Description: e.Description,
		Category:    e.Category,
		Reference:   e.Reference,
		Intent:      e.Intent,
		Context:     ctx,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func (m *EmbeddingMapper) ToModel(e *entity.EmbeddingRecord) (*model.ArtifactEmbedding, error) {
	if e == nil {
		return nil, nil
	}

	var ctx datatypes.JSON
	if len(e.Context) > 0 {
		raw, err := json.Marshal(e.Context)
		if err != nil {
			return nil, err
		}
		ctx = datatypes.JSON(raw)
	}

	return &model.ArtifactEmbedding{
		Kind:           string(e.Kind),
		ArtifactId:     e.ArtifactId,
		OwnerId:        e.OwnerId,
		EmbeddingValue: pgvector.NewVector(e.Vector),
		Title:          e.Title,
		Description:    e.Description,
		Category:       e.Category,
		Reference:      e.Reference,
		Intent:         e.Intent,
		Context:        ctx,
	}, nil
}
