package mapper

import (
	"testing"

	"iso-risk-agent-be/internal/entity"
	"iso-risk-agent-be/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRiskProgressDefaultsToIdentified(t *testing.T) {
	doc := NewDocumentMapper().RiskToDocument(&entity.Risk{Id: "r1"})
	assert.Equal(t, entity.DefaultRiskProgress, doc.RiskProgress)
}

func TestControlCategoryNormalisedOnRead(t *testing.T) {
	c := NewDocumentMapper().ControlToEntity(&model.ControlDocument{Id: "c1", DomainCategory: "Technological Controls"})
	assert.Equal(t, entity.DomainTechnological, c.DomainCategory)
}

func TestEmbeddingContextSurvivesJSONColumn(t *testing.T) {
	m := NewEmbeddingMapper()
	rec := &entity.EmbeddingRecord{
		Kind:       entity.ArtifactQuery,
		ArtifactId: "q1",
		Vector:     []float32{0.1, 0.2},
		Intent:     "query_controls_general",
		Context:    map[string]interface{}{"items": float64(2)},
	}

	row, err := m.ToModel(rec)
	require.NoError(t, err)
	back := m.ToEntity(row)

	assert.Equal(t, rec.Context, back.Context)
	assert.Equal(t, rec.Vector, back.Vector)
	assert.Equal(t, entity.ArtifactQuery, back.Kind)
}
