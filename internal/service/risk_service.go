package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"iso-risk-agent-be/internal/dto"
	"iso-risk-agent-be/internal/entity"
	"iso-risk-agent-be/internal/pkg/logger"
	"iso-risk-agent-be/internal/repository/contract"
	"iso-risk-agent-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

type IRiskService interface {
	GetAll(ctx context.Context, userId, category string) ([]*dto.RiskResponse, error)
	Show(ctx context.Context, userId, id string) (*dto.RiskResponse, error)
	Create(ctx context.Context, userId string, req *dto.CreateRiskRequest) (*dto.RiskResponse, error)
	Update(ctx context.Context, userId string, req *dto.UpdateRiskRequest) (*dto.RiskResponse, error)
	Delete(ctx context.Context, userId, id string) error
}

type riskService struct {
	docs       contract.DocumentStore
	graph      contract.GraphStore
	vectors    contract.VectorIndex
	queue      message.Publisher
	indexTopic string
	events     events.Publisher
	logger     logger.ILogger
}

func NewRiskService(
	docs contract.DocumentStore,
	graph contract.GraphStore,
	vectors contract.VectorIndex,
	queue message.Publisher,
	indexTopic string,
	publisher events.Publisher,
	log logger.ILogger,
) IRiskService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &riskService{
		docs:       docs,
		graph:      graph,
		vectors:    vectors,
		queue:      queue,
		indexTopic: indexTopic,
		events:     publisher,
		logger:     log,
	}
}

func (s *riskService) GetAll(ctx context.Context, userId, category string) ([]*dto.RiskResponse, error) {
	risks, err := s.docs.FindRisks(ctx, contract.RiskFilter{UserId: userId, Category: category})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(risks))
	for _, r := range risks {
		ids = append(ids, r.Id)
	}

	counts := map[string]int{}
	if len(ids) > 0 {
		controls, err := s.docs.FindControls(ctx, contract.ControlFilter{UserId: userId, RiskIds: ids})
		if err != nil {
			return nil, err
		}
		for _, c := range controls {
			counts[c.RiskId]++
		}
	}

	result := make([]*dto.RiskResponse, 0, len(risks))
	for _, r := range risks {
		res := toRiskResponse(r)
		res.ControlCount = counts[r.Id]
		result = append(result, res)
	}
	return result, nil
}

func (s *riskService) Show(ctx context.Context, userId, id string) (*dto.RiskResponse, error) {
	risk, err := s.find(ctx, userId, id)
	if err != nil {
		return nil, err
	}
	controls, err := s.docs.FindControls(ctx, contract.ControlFilter{UserId: userId, RiskId: id})
	if err != nil {
		return nil, err
	}
	res := toRiskResponse(risk)
	res.ControlCount = len(controls)
	return res, nil
}

func (s *riskService) Create(ctx context.Context, userId string, req *dto.CreateRiskRequest) (*dto.RiskResponse, error) {
	risk := &entity.Risk{
		Id:        uuid.NewString(),
		UserId:    userId,
		CreatedAt: time.Now().UTC(),
	}
	applyRiskRequest(risk, req)

	if err := s.docs.UpsertRisk(ctx, risk); err != nil {
		return nil, err
	}
	s.afterWrite(ctx, risk)
	s.emit(ctx, events.NewRiskCreated(userId, risk.Id, risk.Category))
	return toRiskResponse(risk), nil
}

func (s *riskService) Update(ctx context.Context, userId string, req *dto.UpdateRiskRequest) (*dto.RiskResponse, error) {
	risk, err := s.find(ctx, userId, req.Id)
	if err != nil {
		return nil, err
	}
	applyRiskRequest(risk, &req.CreateRiskRequest)
	now := time.Now().UTC()
	risk.UpdatedAt = &now

	if err := s.docs.UpsertRisk(ctx, risk); err != nil {
		return nil, err
	}
	s.afterWrite(ctx, risk)
	return toRiskResponse(risk), nil
}

// Delete removes the risk and its controls from every store. Only the
// document store delete is fatal; index and graph cleanup is logged.
func (s *riskService) Delete(ctx context.Context, userId, id string) error {
	if _, err := s.find(ctx, userId, id); err != nil {
		return err
	}
	controls, err := s.docs.FindControls(ctx, contract.ControlFilter{UserId: userId, RiskId: id})
	if err != nil {
		return err
	}
	for _, c := range controls {
		if err := s.docs.DeleteControl(ctx, userId, c.Id); err != nil {
			return err
		}
	}
	if err := s.docs.DeleteRisk(ctx, userId, id); err != nil {
		return err
	}

	for _, c := range controls {
		s.cleanup("graph", c.Id, s.graph.DeleteNode(ctx, contract.NodeRef{Label: contract.LabelControl, Id: c.Id}))
		s.cleanup("vector", c.Id, s.vectors.Delete(ctx, entity.ArtifactControl, c.Id))
	}
	s.cleanup("graph", id, s.graph.DeleteNode(ctx, contract.NodeRef{Label: contract.LabelRisk, Id: id}))
	s.cleanup("vector", id, s.vectors.Delete(ctx, entity.ArtifactRisk, id))

	s.emit(ctx, events.NewRiskDeleted(userId, id))
	return nil
}

func (s *riskService) find(ctx context.Context, userId, id string) (*entity.Risk, error) {
	risks, err := s.docs.FindRisks(ctx, contract.RiskFilter{UserId: userId, Ids: []string{id}})
	if err != nil {
		return nil, err
	}
	if len(risks) == 0 {
		return nil, contract.ErrNotFound
	}
	return risks[0], nil
}

// afterWrite queues the risk for embedding and graph indexing.
func (s *riskService) afterWrite(ctx context.Context, risk *entity.Risk) {
	if s.queue == nil {
		return
	}
	payload, err := json.Marshal(dto.PublishIndexRiskMessage{RiskId: risk.Id, UserId: risk.UserId})
	if err != nil {
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(context.WithoutCancel(ctx))
	if err := s.queue.Publish(s.indexTopic, msg); err != nil {
		s.logger.Warn("RiskService", "Index job not queued", map[string]interface{}{
			"risk_id": risk.Id,
			"error":   err.Error(),
		})
	}
}

func (s *riskService) emit(ctx context.Context, e events.Event) {
	if err := s.events.Publish(ctx, e); err != nil {
		s.logger.Warn("RiskService", "Event publish failed", map[string]interface{}{
			"type":  e.EventType(),
			"error": err.Error(),
		})
	}
}

func (s *riskService) cleanup(store, id string, err error) {
	if err == nil || errors.Is(err, contract.ErrNotFound) {
		return
	}
	s.logger.Warn("RiskService", "Cleanup failed", map[string]interface{}{
		"store": store,
		"id":    id,
		"error": err.Error(),
	})
}

func applyRiskRequest(r *entity.Risk, req *dto.CreateRiskRequest) {
	r.Title = req.Title
	r.Description = req.Description
	r.Category = req.Category
	r.Likelihood = req.Likelihood
	r.Impact = req.Impact
	r.TreatmentStrategy = req.TreatmentStrategy
	r.Department = req.Department
	r.RiskOwner = req.RiskOwner
	r.Progress = req.Progress
}

func toRiskResponse(r *entity.Risk) *dto.RiskResponse {
	return &dto.RiskResponse{
		Id:                r.Id,
		Title:             r.Title,
		Description:       r.Description,
		Category:          r.Category,
		Likelihood:        r.Likelihood,
		Impact:            r.Impact,
		TreatmentStrategy: r.TreatmentStrategy,
		Department:        r.Department,
		RiskOwner:         r.RiskOwner,
		Progress:          r.Progress,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}
