package service

import (
	"context"
	"strings"

	"iso-risk-agent-be/internal/dto"
	"iso-risk-agent-be/internal/entity"
	"iso-risk-agent-be/internal/pkg/logger"
	"iso-risk-agent-be/pkg/agent/retrieval"
	"iso-risk-agent-be/pkg/agent/state"
	"iso-risk-agent-be/pkg/agent/workflow"
)

type IAgentService interface {
	HandleQuery(ctx context.Context, userId string, req *dto.ChatRequest) (*dto.ChatResponse, error)
	ResumeWithSelection(ctx context.Context, userId string, req *dto.SelectControlsRequest) (*dto.ChatResponse, error)
	RetrieveContext(ctx context.Context, userId string, req *dto.ContextSearchRequest) (*dto.ContextSearchResponse, error)
}

type agentService struct {
	engine    *workflow.Engine
	retriever workflow.ContextRetriever
	logger    logger.ILogger
}

func NewAgentService(engine *workflow.Engine, retriever workflow.ContextRetriever, log logger.ILogger) IAgentService {
	return &agentService{engine: engine, retriever: retriever, logger: log}
}

func (s *agentService) HandleQuery(ctx context.Context, userId string, req *dto.ChatRequest) (*dto.ChatResponse, error) {
	st, err := s.engine.Run(ctx, state.New(userId, strings.TrimSpace(req.Message)))
	if err != nil {
		s.logger.Error("AgentService", "Workflow run failed", map[string]interface{}{
			"user_id": userId,
			"error":   err.Error(),
		})
		return nil, err
	}
	return toChatResponse(st), nil
}

func (s *agentService) ResumeWithSelection(ctx context.Context, userId string, req *dto.SelectControlsRequest) (*dto.ChatResponse, error) {
	st, err := s.engine.Resume(ctx, userId, req.SessionId, req.ControlIds)
	if err != nil {
		s.logger.Warn("AgentService", "Resume rejected", map[string]interface{}{
			"user_id":    userId,
			"session_id": req.SessionId,
			"error":      err.Error(),
		})
		return nil, err
	}
	return toChatResponse(st), nil
}

func (s *agentService) RetrieveContext(ctx context.Context, userId string, req *dto.ContextSearchRequest) (*dto.ContextSearchResponse, error) {
	in := intentFor(req)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	bundle := s.retriever.Retrieve(ctx, retrieval.Request{
		Intent: in,
		Query:  req.Query,
		UserId: userId,
	})

	res := &dto.ContextSearchResponse{
		Intent:       string(in.Kind),
		Items:        toArtifacts(bundle.Items),
		Guidance:     make([]dto.GuidanceResponse, 0, len(bundle.Guidance)),
		Threshold:    bundle.Threshold,
		NoContext:    bundle.NoContext,
		SourceErrors: map[string]string{},
	}
	for _, g := range bundle.Guidance {
		res.Guidance = append(res.Guidance, dto.GuidanceResponse{
			Reference: g.Reference,
			Title:     g.Title,
			Domain:    g.Domain,
			Score:     g.Score,
		})
	}
	for _, k := range bundle.SourcesChecked {
		res.SourcesChecked = append(res.SourcesChecked, string(k))
	}
	for k, msg := range bundle.SourceErrors {
		res.SourceErrors[string(k)] = msg
	}
	return res, nil
}

func intentFor(req *dto.ContextSearchRequest) state.Intent {
	switch state.IntentKind(req.Intent) {
	case state.IntentQueryByCategory:
		return state.QueryByCategory(req.Category)
	case state.IntentRelationshipQuery:
		return state.RelationshipQuery()
	}
	params := state.QueryParams{Domain: req.Domain, Keywords: req.Keywords}
	if d, ok := entity.ParseDomainCategory(req.Domain); ok {
		params.AnnexPrefixes = []string{d.AnnexPrefix()}
	}
	return state.QueryGeneral(params)
}

func toChatResponse(st *state.AgentState) *dto.ChatResponse {
	res := &dto.ChatResponse{
		Intent:            string(st.Intent.Kind),
		Answer:            st.FinalResponse,
		AwaitingSelection: st.Current == state.NodePaused,
		Artifacts:         toArtifacts(st.Artifacts),
		CreatedAt:         st.CreatedAt,
	}
	if res.AwaitingSelection {
		res.SessionId = st.SessionId
		for _, c := range st.GeneratedControls {
			res.Candidates = append(res.Candidates, toControlResponse(c))
		}
	}
	if st.Commit != nil {
		res.Commit = &dto.CommitResponse{
			SavedIds:      st.Commit.SavedIds,
			Skipped:       st.Commit.Skipped,
			GraphFailed:   st.Commit.Graph.FailedIds,
			VectorFailed:  st.Commit.Vector.FailedIds,
			PartialCommit: st.Commit.Partial(),
		}
	}
	for _, k := range st.Context.FailedSources() {
		res.SourcesFailed = append(res.SourcesFailed, string(k))
	}
	return res
}

func toArtifacts(items []state.ContextItem) []dto.ArtifactResponse {
	out := make([]dto.ArtifactResponse, 0, len(items))
	for _, it := range items {
		a := dto.ArtifactResponse{
			Kind:        string(it.Kind),
			Id:          it.ArtifactId,
			Title:       it.Title,
			Description: it.Description,
			Category:    it.Category,
			Reference:   it.Reference,
			Source:      string(it.Source),
			Score:       it.Score,
		}
		if it.Control != nil {
			a.ControlId = it.Control.ControlId
		}
		out = append(out, a)
	}
	return out
}

func toControlResponse(c *entity.Control) *dto.ControlResponse {
	return &dto.ControlResponse{
		Id:                     c.Id,
		ControlId:              c.ControlId,
		RiskId:                 c.RiskId,
		Title:                  c.Title,
		Description:            c.Description,
		DomainCategory:         string(c.DomainCategory),
		AnnexReference:         c.AnnexReference,
		ControlStatement:       c.ControlStatement,
		ImplementationGuidance: c.ImplementationGuidance,
		CreatedAt:              c.CreatedAt,
	}
}
