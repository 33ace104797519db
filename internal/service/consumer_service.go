package service

import (
	"context"
	"encoding/json"
	"time"

	"iso-risk-agent-be/internal/dto"
	"iso-risk-agent-be/internal/entity"
	"iso-risk-agent-be/internal/pkg/logger"
	"iso-risk-agent-be/internal/repository/contract"
	"iso-risk-agent-be/pkg/embedding"

	"github.com/ThreeDotsLabs/watermill/message"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService indexes risks queued by the risk service: one embedding
// per risk in the vector index and the User-HAS_RISK-Risk edge in the graph.
type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	docs       contract.DocumentStore
	graph      contract.GraphStore
	vectors    contract.VectorIndex
	embedder   embedding.EmbeddingProvider
	logger     logger.ILogger
	timeout    time.Duration
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	docs contract.DocumentStore,
	graph contract.GraphStore,
	vectors contract.VectorIndex,
	embedder embedding.EmbeddingProvider,
	log logger.ILogger,
	timeout time.Duration,
) IConsumerService {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		docs:       docs,
		graph:      graph,
		vectors:    vectors,
		embedder:   embedder,
		logger:     log,
		timeout:    timeout,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PublishIndexRiskMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("RiskIndexer", "Undecodable message", map[string]interface{}{"error": err.Error()})
		msg.Ack()
		return
	}

	risks, err := cs.docs.FindRisks(ctx, contract.RiskFilter{UserId: payload.UserId, Ids: []string{payload.RiskId}})
	if err != nil {
		cs.logger.Warn("RiskIndexer", "Risk lookup failed", map[string]interface{}{"risk_id": payload.RiskId, "error": err.Error()})
		msg.Nack()
		return
	}
	if len(risks) == 0 {
		// deleted before we got to it
		msg.Ack()
		return
	}
	risk := risks[0]

	if err := cs.linkGraph(ctx, risk); err != nil {
		cs.logger.Warn("RiskIndexer", "Graph update failed", map[string]interface{}{"risk_id": risk.Id, "error": err.Error()})
		msg.Nack()
		return
	}
	if err := cs.index(ctx, risk); err != nil {
		cs.logger.Warn("RiskIndexer", "Embedding failed", map[string]interface{}{"risk_id": risk.Id, "error": err.Error()})
		msg.Nack()
		return
	}

	cs.logger.Info("RiskIndexer", "Risk indexed", map[string]interface{}{"risk_id": risk.Id})
	msg.Ack()
}

func (cs *consumerService) linkGraph(ctx context.Context, risk *entity.Risk) error {
	ctx, cancel := context.WithTimeout(ctx, cs.timeout)
	defer cancel()

	node := contract.NodeRef{Label: contract.LabelRisk, Id: risk.Id}
	if err := cs.graph.MergeNode(ctx, node, map[string]any{
		"title":    risk.DisplayName(),
		"category": risk.Category,
	}); err != nil {
		return err
	}
	return cs.graph.MergeRelationship(ctx, contract.NodeRef{Label: contract.LabelUser, Id: risk.UserId}, contract.RelHasRisk, node)
}

func (cs *consumerService) index(ctx context.Context, risk *entity.Risk) error {
	ctx, cancel := context.WithTimeout(ctx, cs.timeout)
	defer cancel()

	vec, err := cs.embedder.Embed(ctx, risk.SearchText())
	if err != nil {
		return err
	}
	return cs.vectors.Upsert(ctx, &entity.EmbeddingRecord{
		Kind:        entity.ArtifactRisk,
		ArtifactId:  risk.Id,
		OwnerId:     risk.UserId,
		Vector:      vec,
		Title:       risk.DisplayName(),
		Description: risk.Description,
		Category:    risk.Category,
		Context: map[string]interface{}{
			"likelihood": risk.Likelihood,
			"impact":     risk.Impact,
		},
	})
}
