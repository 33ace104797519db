package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iso-risk-agent-be/internal/entity"
	"iso-risk-agent-be/internal/pkg/logger"
	"iso-risk-agent-be/internal/repository/contract"
	"iso-risk-agent-be/internal/repository/memory"
	"iso-risk-agent-be/pkg/agent/commit"
	"iso-risk-agent-be/pkg/agent/generation"
	"iso-risk-agent-be/pkg/agent/guidance"
	"iso-risk-agent-be/pkg/agent/intent"
	"iso-risk-agent-be/pkg/agent/response"
	"iso-risk-agent-be/pkg/agent/retrieval"
	"iso-risk-agent-be/pkg/agent/state"
	"iso-risk-agent-be/pkg/llm"
)

const drafted = `[
 {"title": "Supplier security agreements", "description": "Bind suppliers to security clauses", "domain_category": "Organizational", "annex_reference": "A.5.20"},
 {"title": "Supplier monitoring", "description": "Review supplier performance", "domain_category": "Organizational", "annex_reference": "A.5.22"},
 {"title": "Alternate supplier plan", "description": "Keep a vetted fallback vendor", "domain_category": "Organizational", "annex_reference": "A.5.30"}
]`

type fixedLLM struct {
	text string
	err  error
}

func (f fixedLLM) Chat(context.Context, []llm.Message, ...llm.Option) (string, error) {
	return f.text, f.err
}

func (f fixedLLM) Generate(context.Context, string, ...llm.Option) (string, error) {
	return f.text, f.err
}

type unitEmbedder struct{}

func (unitEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

type unavailableControls struct{ contract.DocumentStore }

func (unavailableControls) UpsertControls(context.Context, []*entity.Control) ([]string, error) {
	return nil, errors.New("mongo: no reachable servers")
}

type harness struct {
	engine   *Engine
	docs     *memory.DocumentStore
	graph    *memory.GraphStore
	vectors  *memory.VectorIndex
	sessions *memory.SessionRepository
}

func newHarness(t *testing.T, model llm.LLMProvider, settings Settings) *harness {
	t.Helper()
	catalog, err := guidance.Load()
	require.NoError(t, err)

	log := logger.NewNopLogger()
	docs := memory.NewDocumentStore()
	graph := memory.NewGraphStore()
	vectors := memory.NewVectorIndex()
	sessions := memory.NewSessionRepository(time.Hour, time.Minute)

	docs.PutUser(&entity.User{Id: "u1", Username: "ana", OrganizationName: "Acme Freight", Domain: "Logistics"})
	require.NoError(t, docs.UpsertRisk(context.Background(), &entity.Risk{
		Id: "r1", UserId: "u1", Title: "Vendor outage", Category: "Supply Chain Risk",
		Description: "A key logistics supplier stops delivering",
	}))

	engine := NewEngine(Dependencies{
		Classifier: intent.NewClassifier(model, catalog, log),
		Retriever:  retrieval.NewFusion(docs, graph, vectors, unitEmbedder{}, catalog, log, retrieval.Settings{}),
		Generator:  generation.NewGenerator(model, docs, catalog, log, generation.Settings{}),
		Committer:  commit.NewCoordinator(docs, graph, vectors, unitEmbedder{}, nil, log, commit.Settings{}),
		Writer:     response.NewSynthesizer(model, log, time.Second),
		Sessions:   sessions,
		Docs:       docs,
		Vectors:    vectors,
		Embedder:   unitEmbedder{},
		Logger:     log,
	}, settings)
	return &harness{engine: engine, docs: docs, graph: graph, vectors: vectors, sessions: sessions}
}

func TestTransitionTable(t *testing.T) {
	generating := state.New("u1", "")
	generating.Intent = state.GenerateForRisk("r1")

	drafting := state.New("u1", "")
	drafting.Intent = state.GenerateForRisk("r1")
	drafting.PendingSelection = true
	drafting.GeneratedControls = []*entity.Control{{ControlId: "CTRL-r1-001"}}

	selecting := state.New("u1", "")
	selecting.GeneratedControls = []*entity.Control{{ControlId: "CTRL-r1-001"}}
	selecting.SelectedControlIds = []string{"CTRL-r1-001"}

	query := state.New("u1", "")
	query.Intent = state.QueryGeneral(state.QueryParams{})

	tests := []struct {
		name string
		from state.Node
		st   *state.AgentState
		want state.Node
	}{
		{"classify", state.NodeClassifyIntent, query, state.NodeRetrieveContext},
		{"retrieve for generation", state.NodeRetrieveContext, generating, state.NodeGenerateControls},
		{"retrieve for query", state.NodeRetrieveContext, query, state.NodeAnswerQuery},
		{"generate with candidates", state.NodeGenerateControls, drafting, state.NodePaused},
		{"generate without candidates", state.NodeGenerateControls, generating, state.NodeSynthesizeResponse},
		{"answer", state.NodeAnswerQuery, query, state.NodeHandleSelection},
		{"selection made", state.NodeHandleSelection, selecting, state.NodeStoreData},
		{"no selection", state.NodeHandleSelection, query, state.NodeStoreQueryEmbedding},
		{"store", state.NodeStoreData, selecting, state.NodeStoreQueryEmbedding},
		{"embed query", state.NodeStoreQueryEmbedding, query, state.NodeSynthesizeResponse},
		{"synthesize", state.NodeSynthesizeResponse, query, state.NodeDone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Next(tt.from, tt.st)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Next(state.NodeDone, query)
	assert.Error(t, err)
}

func TestGenerationPausesThenCommitsSelectedSubset(t *testing.T) {
	h := newHarness(t, fixedLLM{text: drafted}, Settings{})
	ctx := context.Background()

	st, err := h.engine.Run(ctx, state.New("u1", "Generate controls for risk r1"))
	require.NoError(t, err)
	assert.Equal(t, state.NodePaused, st.Current)
	require.NotEmpty(t, st.SessionId)
	require.Len(t, st.GeneratedControls, 3)
	assert.Contains(t, st.FinalResponse, "I drafted 3 candidate controls")

	stored, err := h.docs.FindControls(ctx, contract.ControlFilter{UserId: "u1"})
	require.NoError(t, err)
	assert.Empty(t, stored, "nothing is saved before the user selects")

	done, err := h.engine.Resume(ctx, "u1", st.SessionId, []string{"CTRL-r1-001", "CTRL-r1-003", "CTRL-r1-001"})
	require.NoError(t, err)
	assert.Equal(t, state.NodeDone, done.Current)
	require.NotNil(t, done.Commit)
	assert.Equal(t, 2, done.Commit.Saved())
	assert.Contains(t, done.FinalResponse, "Saved 2 controls")

	stored, err = h.docs.FindControls(ctx, contract.ControlFilter{UserId: "u1", RiskId: "r1"})
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	_, err = h.engine.Resume(ctx, "u1", st.SessionId, []string{"CTRL-r1-002"})
	assert.ErrorIs(t, err, contract.ErrUnknownSession)
}

func TestDocumentStoreFailureIsReportedInFinalResponse(t *testing.T) {
	h := newHarness(t, fixedLLM{text: drafted}, Settings{})
	ctx := context.Background()

	st, err := h.engine.Run(ctx, state.New("u1", "Generate controls for risk r1"))
	require.NoError(t, err)
	require.Equal(t, state.NodePaused, st.Current)

	// the store goes away while the user is choosing
	h.engine.deps.Committer = commit.NewCoordinator(unavailableControls{h.docs}, h.graph, h.vectors, unitEmbedder{}, nil, logger.NewNopLogger(), commit.Settings{})

	done, err := h.engine.Resume(ctx, "u1", st.SessionId, []string{"CTRL-r1-001", "CTRL-r1-002"})
	require.NoError(t, err)
	assert.Equal(t, state.NodeDone, done.Current)
	assert.Contains(t, done.FinalResponse, "Nothing was saved")
	assert.NotContains(t, done.FinalResponse, "Saved 2 controls")

	stored, err := h.docs.FindControls(ctx, contract.ControlFilter{UserId: "u1"})
	require.NoError(t, err)
	assert.Empty(t, stored)
	assert.Zero(t, h.vectors.Count(entity.ArtifactControl))
	assert.Zero(t, h.graph.NodeCount(contract.LabelControl))
}

func TestResumeByAnotherUserIsRejected(t *testing.T) {
	h := newHarness(t, fixedLLM{text: drafted}, Settings{})
	ctx := context.Background()

	st, err := h.engine.Run(ctx, state.New("u1", "Generate controls for risk r1"))
	require.NoError(t, err)

	_, err = h.engine.Resume(ctx, "intruder", st.SessionId, []string{"CTRL-r1-001"})
	assert.ErrorIs(t, err, contract.ErrUnknownSession)

	_, err = h.engine.Resume(ctx, "u1", st.SessionId, []string{"CTRL-r1-001"})
	assert.NoError(t, err)
}

func TestConcurrentResumeConflicts(t *testing.T) {
	h := newHarness(t, fixedLLM{text: drafted}, Settings{})
	ctx := context.Background()

	st, err := h.engine.Run(ctx, state.New("u1", "Generate controls for risk r1"))
	require.NoError(t, err)

	_, release, err := h.sessions.Acquire(ctx, st.SessionId)
	require.NoError(t, err)
	_, err = h.engine.Resume(ctx, "u1", st.SessionId, []string{"CTRL-r1-001"})
	assert.ErrorIs(t, err, contract.ErrSessionConflict)
	release()

	_, err = h.engine.Resume(ctx, "u1", st.SessionId, []string{"CTRL-r1-001"})
	assert.NoError(t, err)
}

func TestResumeUnknownSession(t *testing.T) {
	h := newHarness(t, fixedLLM{text: drafted}, Settings{})
	_, err := h.engine.Resume(context.Background(), "u1", "missing", nil)
	assert.ErrorIs(t, err, contract.ErrUnknownSession)
}

func TestSelectionMatchingNothingSavesNothing(t *testing.T) {
	h := newHarness(t, fixedLLM{text: drafted}, Settings{})
	ctx := context.Background()

	st, err := h.engine.Run(ctx, state.New("u1", "Generate controls for risk r1"))
	require.NoError(t, err)

	done, err := h.engine.Resume(ctx, "u1", st.SessionId, []string{"CTRL-zz-999"})
	require.NoError(t, err)
	assert.Nil(t, done.Commit)
	assert.Contains(t, done.FinalResponse, "nothing was saved")
}

func TestGenerationFailureEndsWithoutPausing(t *testing.T) {
	h := newHarness(t, fixedLLM{err: errors.New("model offline")}, Settings{})

	st, err := h.engine.Run(context.Background(), state.New("u1", "Generate controls for risk r1"))
	require.NoError(t, err)
	assert.Equal(t, state.NodeDone, st.Current)
	assert.Empty(t, st.SessionId)
	assert.Contains(t, st.FinalResponse, "couldn't generate controls")
}

func TestCoveredRiskIsNotRegenerated(t *testing.T) {
	h := newHarness(t, fixedLLM{text: drafted}, Settings{})
	ctx := context.Background()
	_, err := h.docs.UpsertControls(ctx, []*entity.Control{{
		Id: "c1", ControlId: "CTRL-r1-001", RiskId: "r1", UserId: "u1",
		Title: "Supplier agreements", DomainCategory: entity.DomainOrganizational,
	}})
	require.NoError(t, err)

	st, err := h.engine.Run(ctx, state.New("u1", "Generate controls for risk r1"))
	require.NoError(t, err)
	assert.Equal(t, state.NodeDone, st.Current)
	assert.Contains(t, st.FinalResponse, "You already have 1 controls")
}

func TestQueryRunAnswersAndRecordsQuery(t *testing.T) {
	h := newHarness(t, fixedLLM{err: errors.New("narrative off")}, Settings{})
	ctx := context.Background()
	_, err := h.docs.UpsertControls(ctx, []*entity.Control{{
		Id: "c1", ControlId: "CTRL-r1-001", RiskId: "r1", UserId: "u1",
		Title: "Supply chain security agreements", DomainCategory: entity.DomainOrganizational, AnnexReference: "A.5.19",
	}})
	require.NoError(t, err)

	st, err := h.engine.Run(ctx, state.New("u1", "Show me the controls related to supply chain"))
	require.NoError(t, err)
	assert.Equal(t, state.NodeDone, st.Current)
	assert.Equal(t, state.IntentQueryGeneral, st.Intent.Kind)
	require.NotEmpty(t, st.Artifacts)
	assert.Contains(t, st.FinalResponse, "Supply chain security agreements")
	assert.Equal(t, 1, h.vectors.Count(entity.ArtifactQuery))

	_, err = h.engine.Run(ctx, state.New("u1", "Show me the controls related to supply chain"))
	require.NoError(t, err)
	assert.Equal(t, 1, h.vectors.Count(entity.ArtifactQuery), "the same question overwrites its record")
}

func TestStepLimit(t *testing.T) {
	h := newHarness(t, fixedLLM{text: drafted}, Settings{MaxSteps: 2})
	_, err := h.engine.Run(context.Background(), state.New("u1", "Show me the controls related to supply chain"))
	assert.ErrorIs(t, err, ErrStepLimit)
}
