package mapper

import (
	"encoding/json"

	"iso-risk-agent-be/internal/entity"
	"iso-risk-agent-be/internal/model"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ActivityMapper struct{}

func NewActivityMapper() *ActivityMapper {
	return &ActivityMapper{}
}

func (m *ActivityMapper) ToEntity(a *model.Activity) *entity.Activity {
	if a == nil {
		return nil
	}
	var meta map[string]interface{}
	if len(a.Metadata) > 0 {
		_ = json.Unmarshal(a.Metadata, &meta)
	}
	return &entity.Activity{
		Id:         a.Id.String(),
		UserId:     a.UserId,
		Type:       a.Type,
		Summary:    a.Summary,
		Metadata:   meta,
		OccurredAt: a.OccurredAt,
	}
}

func (m *ActivityMapper) ToModel(a *entity.Activity) (*model.Activity, error) {
	if a == nil {
		return nil, nil
	}
	id, err := uuid.Parse(a.Id)
	if err != nil {
		id = uuid.New()
	}
	meta, err := json.Marshal(a.Metadata)
	if err != nil {
		return nil, err
	}
	return &model.Activity{
		Id:         id,
		UserId:     a.UserId,
		Type:       a.Type,
		Summary:    a.Summary,
		Metadata:   datatypes.JSON(meta),
		OccurredAt: a.OccurredAt,
	}, nil
}
