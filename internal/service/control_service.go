package service

import (
	"context"
	"errors"

	"iso-risk-agent-be/internal/dto"
	"iso-risk-agent-be/internal/entity"
	"iso-risk-agent-be/internal/pkg/logger"
	"iso-risk-agent-be/internal/repository/contract"
)

type IControlService interface {
	GetAll(ctx context.Context, userId string, req *dto.ListControlsRequest) ([]*dto.ControlResponse, error)
	GetByRisk(ctx context.Context, userId, riskId string) ([]*dto.ControlResponse, error)
	Delete(ctx context.Context, userId, id string) (*dto.DeleteControlResponse, error)
}

type controlService struct {
	docs    contract.DocumentStore
	graph   contract.GraphStore
	vectors contract.VectorIndex
	logger  logger.ILogger
}

func NewControlService(docs contract.DocumentStore, graph contract.GraphStore, vectors contract.VectorIndex, log logger.ILogger) IControlService {
	return &controlService{docs: docs, graph: graph, vectors: vectors, logger: log}
}

func (s *controlService) GetAll(ctx context.Context, userId string, req *dto.ListControlsRequest) ([]*dto.ControlResponse, error) {
	filter := contract.ControlFilter{UserId: userId}
	if req != nil {
		if d, ok := entity.ParseDomainCategory(req.DomainCategory); ok {
			filter.DomainCategory = d
		}
		if req.Keyword != "" {
			filter.Keywords = []string{req.Keyword}
		}
	}
	controls, err := s.docs.FindControls(ctx, filter)
	if err != nil {
		return nil, err
	}
	return toControlResponses(controls), nil
}

func (s *controlService) GetByRisk(ctx context.Context, userId, riskId string) ([]*dto.ControlResponse, error) {
	risks, err := s.docs.FindRisks(ctx, contract.RiskFilter{UserId: userId, Ids: []string{riskId}})
	if err != nil {
		return nil, err
	}
	if len(risks) == 0 {
		return nil, contract.ErrNotFound
	}
	controls, err := s.docs.FindControls(ctx, contract.ControlFilter{UserId: userId, RiskId: riskId})
	if err != nil {
		return nil, err
	}
	return toControlResponses(controls), nil
}

// Delete removes the authoritative record first. Graph and vector cleanup
// failures are reported back instead of failing the request.
func (s *controlService) Delete(ctx context.Context, userId, id string) (*dto.DeleteControlResponse, error) {
	if err := s.docs.DeleteControl(ctx, userId, id); err != nil {
		return nil, err
	}
	res := &dto.DeleteControlResponse{Id: id}

	if err := s.graph.DeleteNode(ctx, contract.NodeRef{Label: contract.LabelControl, Id: id}); err != nil && !errors.Is(err, contract.ErrNotFound) {
		res.CleanupFailed = append(res.CleanupFailed, "graph")
		s.logger.Warn("ControlService", "Graph cleanup failed", map[string]interface{}{"id": id, "error": err.Error()})
	}
	if err := s.vectors.Delete(ctx, entity.ArtifactControl, id); err != nil && !errors.Is(err, contract.ErrNotFound) {
		res.CleanupFailed = append(res.CleanupFailed, "vector")
		s.logger.Warn("ControlService", "Vector cleanup failed", map[string]interface{}{"id": id, "error": err.Error()})
	}
	return res, nil
}

func toControlResponses(controls []*entity.Control) []*dto.ControlResponse {
	out := make([]*dto.ControlResponse, 0, len(controls))
	for _, c := range controls {
		out = append(out, toControlResponse(c))
	}
	return out
}
