package specification

import (
	"iso-risk-agent-be/internal/entity"

	"gorm.io/gorm"
)

type ByKind struct {
	Kind entity.ArtifactKind
}

func (s ByKind) Apply(db *gorm.DB) *gorm.DB {
	if s.Kind == "" {
		return db
	}
	return db.Where("kind = ?", string(s.Kind))
}

// ByOwner is a no-op for an empty owner, which searches across users.
type ByOwner struct {
	OwnerId string
}

func (s ByOwner) Apply(db *gorm.DB) *gorm.DB {
	if s.OwnerId == "" {
		return db
	}
	return db.Where("owner_id = ?", s.OwnerId)
}

type ByArtifact struct {
	Kind       entity.ArtifactKind
	ArtifactId string
}

func (s ByArtifact) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("kind = ? AND artifact_id = ?", string(s.Kind), s.ArtifactId)
}
