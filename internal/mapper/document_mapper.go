package mapper

import (
	"iso-risk-agent-be/internal/entity"
	"iso-risk-agent-be/internal/model"
)

type DocumentMapper struct{}

func NewDocumentMapper() *DocumentMapper {
	return &DocumentMapper{}
}

func (m *DocumentMapper) RiskToEntity(d *model.RiskDocument) *entity.Risk {
	if d == nil {
		return nil
	}
	return &entity.Risk{
		Id:                d.Id,
		Title:             d.Title,
		Description:       d.Description,
		Category:          d.Category,
		Likelihood:        d.Likelihood,
		Impact:            d.Impact,
		TreatmentStrategy: d.TreatmentStrategy,
		Department:        d.Department,
		RiskOwner:         d.RiskOwner,
		Progress:          d.RiskProgress,
		UserId:            d.UserId,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

func (m *DocumentMapper) RiskToDocument(e *entity.Risk) *model.RiskDocument {
	if e == nil {
		return nil
	}
	progress := e.Progress
	if progress == "" {
		progress = entity.DefaultRiskProgress
	}
	return &model.RiskDocument{
		Id:                e.Id,
		Title:             e.Title,
		Description:       e.Description,
		Category:          e.Category,
		Likelihood:        e.Likelihood,
		Impact:            e.Impact,
		TreatmentStrategy: e.TreatmentStrategy,
		Department:        e.Department,
		RiskOwner:         e.RiskOwner,
		RiskProgress:      progress,
		UserId:            e.UserId,
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
	}
}

func (m *DocumentMapper) ControlToEntity(d *model.ControlDocument) *entity.Control {
	if d == nil {
		return nil
	}
	category, ok := entity.ParseDomainCategory(d.DomainCategory)
	if !ok {
		category = entity.DomainCategory(d.DomainCategory)
	}
	return &entity.Control{
		Id:                     d.Id,
		ControlId:              d.ControlId,
		Title:                  d.Title,
		Description:            d.Description,
		DomainCategory:         category,
		AnnexReference:         d.AnnexReference,
		ControlStatement:       d.ControlStatement,
		ImplementationGuidance: d.ImplementationGuidance,
		RiskId:                 d.RiskId,
		UserId:                 d.UserId,
		CreatedAt:              d.CreatedAt,
	}
}

func (m *DocumentMapper) ControlToDocument(e *entity.Control) *model.ControlDocument {
	if e == nil {
		return nil
	}
	return &model.ControlDocument{
		Id:                     e.Id,
		ControlId:              e.ControlId,
		Title:                  e.Title,
		Description:            e.Description,
		DomainCategory:         string(e.DomainCategory),
		AnnexReference:         e.AnnexReference,
		ControlStatement:       e.ControlStatement,
		ImplementationGuidance: e.ImplementationGuidance,
		RiskId:                 e.RiskId,
		UserId:                 e.UserId,
		CreatedAt:              e.CreatedAt,
	}
}

func (m *DocumentMapper) UserToEntity(d *model.UserDocument) *entity.User {
	if d == nil {
		return nil
	}
	return &entity.User{
		Id:               d.Id,
		Username:         d.Username,
		Email:            d.Email,
		OrganizationName: d.OrganizationName,
		Domain:           d.Domain,
		Location:         d.Location,
	}
}
