package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// ArtifactEmbedding holds one vector per (kind, artifact_id).
// Dimension matches text-embedding-ada-002.
type ArtifactEmbedding struct {
	Id             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Kind           string          `gorm:"type:varchar(16);not null;uniqueIndex:idx_artifact_kind_id"`
	ArtifactId     string          `gorm:"type:varchar(128);not null;uniqueIndex:idx_artifact_kind_id"`
	OwnerId        string          `gorm:"type:varchar(128);index"`
	EmbeddingValue pgvector.Vector `gorm:"type:vector(1536)"`
	Title          string          `gorm:"type:text"`
	Description    string          `gorm:"type:text"`
	Category       string          `gorm:"type:varchar(128)"`
	Reference      string          `gorm:"type:varchar(32)"`
	Intent         string          `gorm:"type:varchar(64)"`
	Context        datatypes.JSON  `gorm:"type:jsonb"`
	CreatedAt      time.Time       `gorm:"autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime"`
}

func (ArtifactEmbedding) TableName() string {
	return "artifact_embeddings"
}
