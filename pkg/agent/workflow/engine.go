// Package workflow runs the agent as an explicit state machine over
// state.AgentState and suspends it while the user picks controls.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"iso-risk-agent-be/internal/entity"
	"iso-risk-agent-be/internal/pkg/logger"
	"iso-risk-agent-be/internal/repository/contract"
	"iso-risk-agent-be/pkg/agent/commit"
	"iso-risk-agent-be/pkg/agent/generation"
	"iso-risk-agent-be/pkg/agent/retrieval"
	"iso-risk-agent-be/pkg/agent/state"
	"iso-risk-agent-be/pkg/embedding"
)

const module = "AgentWorkflow"

var (
	ErrStepLimit      = errors.New("workflow exceeded its step limit")
	ErrNotResumable   = errors.New("session is not waiting for a selection")
	ErrSessionPersist = errors.New("could not persist the paused session")
)

// queryNamespace keys query embeddings so a repeated question overwrites its record.
var queryNamespace = uuid.MustParse("2b7e3c51-84d6-4a0e-9c5f-6e1d0a4b7f93")

type IntentClassifier interface {
	Classify(ctx context.Context, query string, user *entity.User) state.Intent
}

type ContextRetriever interface {
	Retrieve(ctx context.Context, req retrieval.Request) *state.ContextBundle
}

type ControlGenerator interface {
	ResolveTargets(ctx context.Context, in state.Intent, userId string) (*generation.Targets, error)
	Generate(ctx context.Context, targets *generation.Targets, user *entity.User, userId string, bundle *state.ContextBundle) ([]*entity.Control, []generation.Failure)
}

type Committer interface {
	Commit(ctx context.Context, batch commit.Batch) (*state.CommitResult, error)
}

type ResponseWriter interface {
	Synthesize(ctx context.Context, st *state.AgentState) string
}

type Dependencies struct {
	Classifier IntentClassifier
	Retriever  ContextRetriever
	Generator  ControlGenerator
	Committer  Committer
	Writer     ResponseWriter
	Sessions   contract.SessionStore
	Docs       contract.DocumentStore
	Vectors    contract.VectorIndex
	Embedder   embedding.EmbeddingProvider
	Logger     logger.ILogger
}

type Settings struct {
	MaxSteps         int
	EmbeddingTimeout time.Duration
	StoreTimeout     time.Duration
}

type Engine struct {
	deps     Dependencies
	settings Settings
	tracer   trace.Tracer
	nodes    map[state.Node]func(context.Context, *state.AgentState) error
}

func NewEngine(deps Dependencies, settings Settings) *Engine {
	if settings.MaxSteps <= 0 {
		settings.MaxSteps = 20
	}
	if settings.EmbeddingTimeout <= 0 {
		settings.EmbeddingTimeout = 15 * time.Second
	}
	if settings.StoreTimeout <= 0 {
		settings.StoreTimeout = 10 * time.Second
	}
	e := &Engine{deps: deps, settings: settings, tracer: otel.Tracer("iso-risk-agent/workflow")}
	e.nodes = map[state.Node]func(context.Context, *state.AgentState) error{
		state.NodeClassifyIntent:      e.classifyIntent,
		state.NodeRetrieveContext:     e.retrieveContext,
		state.NodeGenerateControls:    e.generateControls,
		state.NodeAnswerQuery:         e.answerQuery,
		state.NodeHandleSelection:     e.handleSelection,
		state.NodeStoreData:           e.storeData,
		state.NodeStoreQueryEmbedding: e.storeQueryEmbedding,
		state.NodeSynthesizeResponse:  e.synthesizeResponse,
	}
	return e
}

// Run drives a fresh state until it finishes or pauses for a selection.
// A paused state carries a SessionId and a FinalResponse listing the candidates.
func (e *Engine) Run(ctx context.Context, st *state.AgentState) (*state.AgentState, error) {
	if st.User == nil && e.deps.Docs != nil {
		user, err := e.deps.Docs.FindUser(ctx, st.UserId)
		if err == nil {
			st.User = user
		} else if !errors.Is(err, contract.ErrNotFound) {
			e.deps.Logger.Warn(module, "User profile unavailable", map[string]interface{}{
				"user_id": st.UserId,
				"error":   err.Error(),
			})
		}
	}
	if st.Current == "" {
		st.Current = state.NodeClassifyIntent
	}
	if err := e.loop(ctx, st); err != nil {
		return st, err
	}
	if st.Current == state.NodePaused {
		if err := e.pause(ctx, st); err != nil {
			return st, err
		}
	}
	return st, nil
}

// Resume continues a paused session with the user's selection. Only the
// session owner may resume it; the session is deleted once the run completes.
func (e *Engine) Resume(ctx context.Context, userId, sessionId string, selected []string) (*state.AgentState, error) {
	snapshot, release, err := e.deps.Sessions.Acquire(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	defer release()

	st, err := state.Unmarshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionId, err)
	}
	if st.UserId != userId {
		e.deps.Logger.Warn(module, "Session owner mismatch", map[string]interface{}{
			"session_id": sessionId,
			"user_id":    userId,
		})
		return nil, contract.ErrUnknownSession
	}
	if st.Current != state.NodePaused || !st.PendingSelection {
		return nil, ErrNotResumable
	}

	st.SelectedControlIds = dedupe(selected)
	st.PendingSelection = false
	st.Resumed = true
	st.Notices = nil
	st.FinalResponse = ""
	st.Current = state.NodeHandleSelection

	if err := e.loop(ctx, st); err != nil {
		return st, err
	}
	if err := e.deps.Sessions.Delete(ctx, sessionId); err != nil {
		e.deps.Logger.Warn(module, "Session cleanup failed", map[string]interface{}{
			"session_id": sessionId,
			"error":      err.Error(),
		})
	}
	return st, nil
}

func (e *Engine) loop(ctx context.Context, st *state.AgentState) error {
	for !st.Current.Terminal() {
		if st.Steps >= e.settings.MaxSteps {
			e.deps.Logger.Error(module, "Step limit reached", map[string]interface{}{
				"node":  string(st.Current),
				"steps": st.Steps,
			})
			return fmt.Errorf("%w at %s", ErrStepLimit, st.Current)
		}
		node, ok := e.nodes[st.Current]
		if !ok {
			return fmt.Errorf("no handler for node %s", st.Current)
		}
		st.Steps++

		nctx, span := e.tracer.Start(ctx, "workflow."+string(st.Current), trace.WithAttributes(
			attribute.String("agent.user_id", st.UserId),
			attribute.String("agent.intent", string(st.Intent.Kind)),
		))
		err := node(nctx, st)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if err != nil {
			return fmt.Errorf("%s: %w", st.Current, err)
		}

		next, err := Next(st.Current, st)
		if err != nil {
			return err
		}
		e.deps.Logger.Debug(module, "Transition", map[string]interface{}{
			"from":  string(st.Current),
			"to":    string(next),
			"steps": st.Steps,
		})
		st.Current = next
	}
	return nil
}

func (e *Engine) pause(ctx context.Context, st *state.AgentState) error {
	st.SessionId = uuid.NewString()
	st.FinalResponse = e.deps.Writer.Synthesize(ctx, st)

	data, err := st.Marshal()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSessionPersist, err)
	}
	if err := e.deps.Sessions.Save(ctx, st.SessionId, data); err != nil {
		e.deps.Logger.Error(module, "Session save failed", map[string]interface{}{
			"session_id": st.SessionId,
			"error":      err.Error(),
		})
		return fmt.Errorf("%w: %v", ErrSessionPersist, err)
	}
	e.deps.Logger.Info(module, "Awaiting selection", map[string]interface{}{
		"session_id": st.SessionId,
		"candidates": len(st.GeneratedControls),
	})
	return nil
}

func (e *Engine) classifyIntent(ctx context.Context, st *state.AgentState) error {
	st.Intent = e.deps.Classifier.Classify(ctx, st.Query, st.User)
	e.deps.Logger.Info(module, "Intent classified", map[string]interface{}{
		"intent":  string(st.Intent.Kind),
		"user_id": st.UserId,
	})
	return nil
}

func (e *Engine) retrieveContext(ctx context.Context, st *state.AgentState) error {
	req := retrieval.Request{
		Intent:    st.Intent,
		Query:     st.Query,
		UserId:    st.UserId,
		OrgDomain: orgDomain(st.User),
	}

	if st.Intent.Kind.IsGeneration() {
		targets, err := e.deps.Generator.ResolveTargets(ctx, st.Intent, st.UserId)
		if err != nil {
			e.deps.Logger.Error(module, "Risk lookup failed", map[string]interface{}{"error": err.Error()})
			st.Failure = "I couldn't read your risk register right now, so no controls were generated. Please try again."
			return nil
		}
		if targets.Notice != "" {
			st.Notices = append(st.Notices, targets.Notice)
		}
		st.TargetRisks = targets.Risks
		if len(targets.Risks) == 0 {
			return nil
		}
		req.Risks = targets.Risks
		parts := make([]string, 0, len(targets.Risks))
		for _, r := range targets.Risks {
			parts = append(parts, r.SearchText())
		}
		req.Query = strings.Join(parts, "\n")
	}

	st.Context = e.deps.Retriever.Retrieve(ctx, req)
	return nil
}

func (e *Engine) generateControls(ctx context.Context, st *state.AgentState) error {
	if len(st.TargetRisks) == 0 {
		return nil
	}
	targets := &generation.Targets{Risks: st.TargetRisks, Existing: map[string]int{}}
	controls, failures := e.deps.Generator.Generate(ctx, targets, st.User, st.UserId, st.Context)

	names := map[string]string{}
	for _, r := range st.TargetRisks {
		names[r.Id] = r.DisplayName()
	}
	if len(controls) == 0 {
		st.Failure = "I couldn't generate controls right now. The language model did not return usable suggestions; please try again."
		return nil
	}
	for _, f := range failures {
		st.Notices = append(st.Notices, fmt.Sprintf("I couldn't draft controls for risk \"%s\" this time; ask again to retry it.", names[f.RiskId]))
	}
	st.GeneratedControls = controls
	st.PendingSelection = true
	return nil
}

func (e *Engine) answerQuery(_ context.Context, st *state.AgentState) error {
	if st.Context != nil {
		st.Artifacts = st.Context.Items
	}
	return nil
}

func (e *Engine) handleSelection(_ context.Context, st *state.AgentState) error {
	if !st.Resumed {
		return nil
	}
	switch {
	case len(st.SelectedControlIds) == 0:
		st.Notices = append(st.Notices, "No controls were selected, so nothing was saved.")
	case len(st.SelectedControls()) == 0:
		st.Notices = append(st.Notices, "None of the selected IDs matched a drafted control, so nothing was saved.")
	}
	return nil
}

func (e *Engine) storeData(ctx context.Context, st *state.AgentState) error {
	res, err := e.deps.Committer.Commit(ctx, commit.Batch{
		UserId:   st.UserId,
		User:     st.User,
		Risks:    st.TargetRisks,
		Controls: st.SelectedControls(),
	})
	st.Commit = res
	switch {
	case errors.Is(err, commit.ErrDocumentStoreWriteFailed):
		st.Failure = "I couldn't save your selected controls because the document store is unavailable. Nothing was saved; please try again."
	case errors.Is(err, commit.ErrEmptyBatch):
		st.Failure = "None of the selected controls could be saved because they are missing required fields."
	case err != nil:
		return err
	}
	return nil
}

// storeQueryEmbedding is best effort; a failure never changes the answer.
func (e *Engine) storeQueryEmbedding(ctx context.Context, st *state.AgentState) error {
	if strings.TrimSpace(st.Query) == "" || e.deps.Embedder == nil || e.deps.Vectors == nil {
		return nil
	}
	ectx, cancel := context.WithTimeout(ctx, e.settings.EmbeddingTimeout)
	vec, err := e.deps.Embedder.Embed(ectx, st.Query)
	cancel()
	if err != nil {
		e.deps.Logger.Warn(module, "Query embedding skipped", map[string]interface{}{"error": err.Error()})
		return nil
	}

	record := &entity.EmbeddingRecord{
		Kind:       entity.ArtifactQuery,
		ArtifactId: uuid.NewSHA1(queryNamespace, []byte(st.UserId+"\x00"+st.Query)).String(),
		OwnerId:    st.UserId,
		Vector:     vec,
		Title:      st.Query,
		Intent:     string(st.Intent.Kind),
		Context:    querySummary(st),
	}
	sctx, cancel := context.WithTimeout(ctx, e.settings.StoreTimeout)
	defer cancel()
	if err := e.deps.Vectors.Upsert(sctx, record); err != nil {
		e.deps.Logger.Warn(module, "Query embedding not stored", map[string]interface{}{"error": err.Error()})
	}
	return nil
}

func (e *Engine) synthesizeResponse(ctx context.Context, st *state.AgentState) error {
	st.FinalResponse = e.deps.Writer.Synthesize(ctx, st)
	return nil
}

func querySummary(st *state.AgentState) map[string]interface{} {
	out := map[string]interface{}{}
	if st.Context != nil {
		out["items"] = len(st.Context.Items)
		out["guidance"] = len(st.Context.Guidance)
		var failed []string
		for _, k := range st.Context.FailedSources() {
			failed = append(failed, string(k))
		}
		if len(failed) > 0 {
			out["failed_sources"] = failed
		}
	}
	if st.Commit != nil {
		out["saved"] = st.Commit.Saved()
	}
	if st.SessionId != "" {
		out["session_id"] = st.SessionId
	}
	return out
}

func orgDomain(u *entity.User) string {
	if u == nil {
		return ""
	}
	return u.Domain
}

func dedupe(ids []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
