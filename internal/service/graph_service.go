package service

import (
	"context"

	"iso-risk-agent-be/internal/dto"
	"iso-risk-agent-be/internal/repository/contract"
)

type IGraphService interface {
	Stats(ctx context.Context, userId string) (*dto.GraphStatsResponse, error)
}

type graphService struct {
	graph contract.GraphStore
}

func NewGraphService(graph contract.GraphStore) IGraphService {
	return &graphService{graph: graph}
}

func (s *graphService) Stats(ctx context.Context, userId string) (*dto.GraphStatsResponse, error) {
	stats, err := s.graph.CategoryStats(ctx, userId)
	if err != nil {
		return nil, err
	}
	res := &dto.GraphStatsResponse{Categories: make([]dto.CategoryStatResponse, 0, len(stats))}
	for _, st := range stats {
		res.Categories = append(res.Categories, dto.CategoryStatResponse{
			Category: st.Category,
			Risks:    st.Risks,
			Controls: st.Controls,
		})
		res.TotalRisks += st.Risks
		res.TotalControls += st.Controls
		if st.Controls == 0 {
			res.UncoveredRisks += st.Risks
		}
	}
	return res, nil
}
