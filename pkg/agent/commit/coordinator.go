// Package commit writes selected controls to the document store, the
// relationship graph and the vector index.
package commit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"iso-risk-agent-be/internal/entity"
	"iso-risk-agent-be/internal/pkg/logger"
	"iso-risk-agent-be/internal/repository/contract"
	"iso-risk-agent-be/pkg/agent/state"
	"iso-risk-agent-be/pkg/embedding"
	"iso-risk-agent-be/pkg/events"
)

const module = "StoreCoordinator"

var (
	ErrEmptyBatch                = errors.New("no controls to commit")
	ErrDocumentStoreWriteFailed  = errors.New("document store write failed")
	ErrSecondaryStoreWriteFailed = errors.New("secondary store write failed")
)

type Settings struct {
	StoreTimeout     time.Duration
	EmbeddingTimeout time.Duration
}

// Batch is one commit. Risks and User decorate the graph nodes; they are optional.
type Batch struct {
	UserId   string
	User     *entity.User
	Risks    []*entity.Risk
	Controls []*entity.Control
}

type Coordinator struct {
	docs      contract.DocumentStore
	graph     contract.GraphStore
	vectors   contract.VectorIndex
	embedder  embedding.EmbeddingProvider
	publisher events.Publisher
	logger    logger.ILogger
	settings  Settings
}

func NewCoordinator(
	docs contract.DocumentStore,
	graph contract.GraphStore,
	vectors contract.VectorIndex,
	embedder embedding.EmbeddingProvider,
	publisher events.Publisher,
	log logger.ILogger,
	settings Settings,
) *Coordinator {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if settings.StoreTimeout <= 0 {
		settings.StoreTimeout = 10 * time.Second
	}
	if settings.EmbeddingTimeout <= 0 {
		settings.EmbeddingTimeout = 15 * time.Second
	}
	return &Coordinator{
		docs:      docs,
		graph:     graph,
		vectors:   vectors,
		embedder:  embedder,
		publisher: publisher,
		logger:    log,
		settings:  settings,
	}
}

// Commit is idempotent: every write is an upsert or a MERGE keyed by the
// control's id. Only a document store failure is returned as an error;
// graph and vector failures are reported on the result.
func (c *Coordinator) Commit(ctx context.Context, batch Batch) (*state.CommitResult, error) {
	if len(batch.Controls) == 0 {
		return nil, ErrEmptyBatch
	}

	result := &state.CommitResult{}
	var valid []*entity.Control
	for _, ctl := range batch.Controls {
		if err := ctl.Validate(); err != nil {
			c.logger.Warn(module, "MissingRequiredField", map[string]interface{}{
				"control_id": ctl.ControlId,
				"title":      ctl.Title,
				"error":      err.Error(),
			})
			result.Skipped = append(result.Skipped, label(ctl))
			continue
		}
		valid = append(valid, ctl)
	}
	if len(valid) == 0 {
		return result, fmt.Errorf("%w: every control is %v", ErrEmptyBatch, entity.ErrMissingRequiredField)
	}

	result.Documents.Attempted = len(valid)
	dctx, cancel := context.WithTimeout(ctx, c.settings.StoreTimeout)
	saved, err := c.docs.UpsertControls(dctx, valid)
	cancel()
	if err != nil {
		result.Documents.Error = err.Error()
		c.logger.Error(module, "Document store write failed", map[string]interface{}{
			"controls": len(valid),
			"error":    err.Error(),
		})
		return result, fmt.Errorf("%w: %v", ErrDocumentStoreWriteFailed, err)
	}
	result.SavedIds = saved
	result.Documents.Succeeded = len(saved)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		result.Graph = c.linkGraph(ctx, batch, valid)
	}()
	go func() {
		defer wg.Done()
		result.Vector = c.indexVectors(ctx, batch.UserId, valid)
	}()
	wg.Wait()

	c.logger.Info(module, "Controls committed", map[string]interface{}{
		"saved":      result.Saved(),
		"linked":     result.Linked(),
		"searchable": result.Searchable(),
		"skipped":    len(result.Skipped),
	})

	c.publish(ctx, batch.UserId, valid)
	return result, nil
}

func (c *Coordinator) linkGraph(ctx context.Context, batch Batch, controls []*entity.Control) state.StoreOutcome {
	out := state.StoreOutcome{Attempted: len(controls)}
	if c.graph == nil {
		out.Error = "graph store not configured"
		for _, ctl := range controls {
			out.FailedIds = append(out.FailedIds, ctl.Id)
		}
		return out
	}

	risks := map[string]*entity.Risk{}
	for _, r := range batch.Risks {
		risks[r.Id] = r
	}
	userNode := contract.NodeRef{Label: contract.LabelUser, Id: batch.UserId}
	userErr := c.graphWrite(ctx, func(ctx context.Context) error {
		return c.graph.MergeNode(ctx, userNode, userProps(batch.User))
	})

	riskErrs := map[string]error{}
	for _, ctl := range controls {
		err := userErr
		if err == nil {
			rerr, done := riskErrs[ctl.RiskId]
			if !done {
				rerr = c.linkRisk(ctx, userNode, ctl.RiskId, risks[ctl.RiskId])
				riskErrs[ctl.RiskId] = rerr
			}
			err = rerr
		}
		if err == nil {
			err = c.linkControl(ctx, userNode, ctl)
		}
		if err != nil {
			out.FailedIds = append(out.FailedIds, ctl.Id)
			out.Error = err.Error()
			c.logger.Warn(module, "SecondaryStoreWriteFailed", map[string]interface{}{
				"store":      "graph",
				"control_id": ctl.ControlId,
				"error":      err.Error(),
			})
			continue
		}
		out.Succeeded++
	}
	return out
}

func (c *Coordinator) linkRisk(ctx context.Context, user contract.NodeRef, riskId string, risk *entity.Risk) error {
	node := contract.NodeRef{Label: contract.LabelRisk, Id: riskId}
	return c.graphWrite(ctx, func(ctx context.Context) error {
		if risk != nil {
			if err := c.graph.MergeNode(ctx, node, map[string]any{"title": risk.DisplayName(), "category": risk.Category}); err != nil {
				return err
			}
		}
		return c.graph.MergeRelationship(ctx, user, contract.RelHasRisk, node)
	})
}

func (c *Coordinator) linkControl(ctx context.Context, user contract.NodeRef, ctl *entity.Control) error {
	node := contract.NodeRef{Label: contract.LabelControl, Id: ctl.Id}
	risk := contract.NodeRef{Label: contract.LabelRisk, Id: ctl.RiskId}
	return c.graphWrite(ctx, func(ctx context.Context) error {
		if err := c.graph.MergeNode(ctx, node, map[string]any{
			"control_id":      ctl.ControlId,
			"title":           ctl.Title,
			"domain_category": string(ctl.DomainCategory),
			"annex_reference": ctl.AnnexReference,
		}); err != nil {
			return err
		}
		if err := c.graph.MergeRelationship(ctx, user, contract.RelSelectedControl, node); err != nil {
			return err
		}
		return c.graph.MergeRelationship(ctx, node, contract.RelMitigates, risk)
	})
}

func (c *Coordinator) graphWrite(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.settings.StoreTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		return fmt.Errorf("%w: graph: %v", ErrSecondaryStoreWriteFailed, err)
	}
	return nil
}

func (c *Coordinator) indexVectors(ctx context.Context, userId string, controls []*entity.Control) state.StoreOutcome {
	out := state.StoreOutcome{Attempted: len(controls)}
	for _, ctl := range controls {
		if err := c.indexOne(ctx, userId, ctl); err != nil {
			out.FailedIds = append(out.FailedIds, ctl.Id)
			out.Error = err.Error()
			c.logger.Warn(module, "SecondaryStoreWriteFailed", map[string]interface{}{
				"store":      "vector",
				"control_id": ctl.ControlId,
				"error":      err.Error(),
			})
			continue
		}
		out.Succeeded++
	}
	return out
}

func (c *Coordinator) indexOne(ctx context.Context, userId string, ctl *entity.Control) error {
	if c.vectors == nil || c.embedder == nil {
		return fmt.Errorf("%w: vector index not configured", ErrSecondaryStoreWriteFailed)
	}
	ectx, cancel := context.WithTimeout(ctx, c.settings.EmbeddingTimeout)
	vec, err := c.embedder.Embed(ectx, ctl.SearchText())
	cancel()
	if err != nil {
		return fmt.Errorf("%w: embed: %v", ErrSecondaryStoreWriteFailed, err)
	}

	sctx, cancel := context.WithTimeout(ctx, c.settings.StoreTimeout)
	defer cancel()
	err = c.vectors.Upsert(sctx, &entity.EmbeddingRecord{
		Kind:        entity.ArtifactControl,
		ArtifactId:  ctl.Id,
		OwnerId:     userId,
		Vector:      vec,
		Title:       ctl.Title,
		Description: ctl.Description,
		Category:    string(ctl.DomainCategory),
		Reference:   ctl.AnnexReference,
		Context: map[string]interface{}{
			"risk_id":    ctl.RiskId,
			"control_id": ctl.ControlId,
		},
	})
	if err != nil {
		return fmt.Errorf("%w: vector: %v", ErrSecondaryStoreWriteFailed, err)
	}
	return nil
}

func (c *Coordinator) publish(ctx context.Context, userId string, controls []*entity.Control) {
	ids := make([]string, 0, len(controls))
	seen := map[string]bool{}
	var riskIds []string
	for _, ctl := range controls {
		ids = append(ids, ctl.Id)
		if !seen[ctl.RiskId] {
			seen[ctl.RiskId] = true
			riskIds = append(riskIds, ctl.RiskId)
		}
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.publisher.Publish(pctx, events.NewControlsCommitted(userId, ids, riskIds)); err != nil {
		c.logger.Warn(module, "Event publish failed", map[string]interface{}{"error": err.Error()})
	}
}

func userProps(u *entity.User) map[string]any {
	if u == nil {
		return nil
	}
	return map[string]any{
		"username":          u.Username,
		"organization_name": u.OrganizationName,
		"domain":            u.Domain,
	}
}

func label(ctl *entity.Control) string {
	if ctl.ControlId != "" {
		return ctl.ControlId
	}
	if ctl.Title != "" {
		return ctl.Title
	}
	return "(untitled control)"
}
