package response

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"iso-risk-agent-be/internal/entity"
	"iso-risk-agent-be/internal/pkg/logger"
	"iso-risk-agent-be/internal/repository/contract"
	"iso-risk-agent-be/pkg/agent/state"
	"iso-risk-agent-be/pkg/llm"
)

type cannedLLM struct {
	text string
	err  error
}

func (c cannedLLM) Chat(context.Context, []llm.Message, ...llm.Option) (string, error) {
	return c.text, c.err
}

func (c cannedLLM) Generate(context.Context, string, ...llm.Option) (string, error) {
	return c.text, c.err
}

func synth(model llm.LLMProvider) *Synthesizer {
	return NewSynthesizer(model, logger.NewNopLogger(), time.Second)
}

func score(f float64) *float64 { return &f }

func queryState() *state.AgentState {
	st := state.New("u1", "Show me the controls related to supply chain")
	st.Intent = state.QueryGeneral(state.QueryParams{Keywords: []string{"supply chain"}})
	st.Context = &state.ContextBundle{SourcesChecked: state.AllSources, Threshold: 0.8}
	return st
}

func TestQueryAnswerEnumeratesAndStatesThreshold(t *testing.T) {
	st := queryState()
	st.Artifacts = []state.ContextItem{
		{Kind: entity.ArtifactControl, Title: "Supplier due diligence", Category: "Organizational", Reference: "A.5.19",
			Source: state.SourceExisting, Control: &entity.Control{ControlId: "CTRL-r1-001"}},
		{Kind: entity.ArtifactControl, Title: "Vendor access review", Source: state.SourceVector, Score: score(0.91)},
	}

	out := synth(cannedLLM{text: "You have two supply chain controls."}).Synthesize(context.Background(), st)
	assert.Contains(t, out, "You have two supply chain controls.")
	assert.Contains(t, out, "1. [CTRL-r1-001] Supplier due diligence (Organizational, A.5.19, from your existing controls)")
	assert.Contains(t, out, "2. Vendor access review (relevance 0.91)")
	assert.Contains(t, out, "above 0.80")
}

func TestQueryAnswerFallsBackToTemplate(t *testing.T) {
	st := queryState()
	st.Artifacts = []state.ContextItem{{Kind: entity.ArtifactControl, Title: "Supplier due diligence", Source: state.SourceExisting}}

	for _, model := range []llm.LLMProvider{cannedLLM{err: llm.ErrGenerationUnavailable}, cannedLLM{text: "   "}, nil} {
		out := synth(model).Synthesize(context.Background(), st)
		assert.Contains(t, out, "I found 1 item related to your request:")
		assert.Contains(t, out, "1. Supplier due diligence")
	}
}

func TestNoneFoundNamesSourcesChecked(t *testing.T) {
	st := queryState()
	out := synth(nil).Synthesize(context.Background(), st)
	assert.Contains(t, out, "didn't find any controls")
	assert.Contains(t, out, "your existing controls")
	assert.Contains(t, out, "semantic similarity")
	assert.NotContains(t, out, "unavailable")
}

func TestPartialFailureIsNotReportedAsNoneFound(t *testing.T) {
	st := queryState()
	st.Context.SourceErrors = map[state.SourceKind]string{state.SourceVector: "timeout"}
	out := synth(nil).Synthesize(context.Background(), st)
	assert.Contains(t, out, "semantic similarity was unavailable")
	assert.NotContains(t, out, "I checked your existing controls, keyword search, semantic similarity")
}

func TestAllSourcesFailed(t *testing.T) {
	st := queryState()
	st.Context.NoContext = true
	st.Context.SourceErrors = map[state.SourceKind]string{
		state.SourceExisting: "x", state.SourceText: "x", state.SourceVector: "x", state.SourceGuidance: "x",
	}
	out := synth(cannedLLM{text: "should not be used"}).Synthesize(context.Background(), st)
	assert.Contains(t, out, "couldn't reach any of my knowledge sources")
	assert.NotContains(t, out, "didn't find")
}

func TestSelectionPrompt(t *testing.T) {
	st := state.New("u1", "generate controls for risk r1")
	st.Intent = state.GenerateForRisk("r1")
	st.PendingSelection = true
	st.TargetRisks = []*entity.Risk{{Id: "r1", Title: "Vendor outage"}}
	st.GeneratedControls = []*entity.Control{
		{ControlId: "CTRL-r1-001", RiskId: "r1", Title: "Supplier agreements", DomainCategory: entity.DomainOrganizational, AnnexReference: "A.5.20"},
		{ControlId: "CTRL-r1-002", RiskId: "r1", Title: "Backup supplier", DomainCategory: entity.DomainOrganizational},
	}
	out := synth(nil).Synthesize(context.Background(), st)
	assert.Contains(t, out, "I drafted 2 candidate controls")
	assert.Contains(t, out, "Risk: Vendor outage")
	assert.Contains(t, out, "2. [CTRL-r1-002] Backup supplier (Organizational, -)")
}

func TestCommitSummaryReportsEachStore(t *testing.T) {
	st := state.New("u1", "")
	st.Intent = state.GenerateForRisk("r1")
	st.Commit = &state.CommitResult{
		SavedIds:  []string{"a", "b", "c"},
		Documents: state.StoreOutcome{Attempted: 3, Succeeded: 3},
		Graph:     state.StoreOutcome{Attempted: 3, Succeeded: 1},
		Vector:    state.StoreOutcome{Attempted: 3, Succeeded: 3},
		Skipped:   []string{"Orphan"},
	}
	out := synth(nil).Synthesize(context.Background(), st)
	assert.Contains(t, out, "Saved 3 controls to your register.")
	assert.Contains(t, out, "relationship graph update failed for 2 controls")
	assert.Contains(t, out, "Skipped 1 incomplete control: Orphan.")
}

func TestFailureTextIsShown(t *testing.T) {
	st := state.New("u1", "")
	st.Intent = state.GenerateForRisk("r1")
	st.Failure = "I couldn't save your controls because the document store is unavailable."
	out := synth(nil).Synthesize(context.Background(), st)
	assert.Contains(t, out, "document store is unavailable")
}

func TestRelationshipAnswer(t *testing.T) {
	st := state.New("u1", "how many risks have controls")
	st.Intent = state.RelationshipQuery()
	st.Context = &state.ContextBundle{
		SourcesChecked: state.AllSources,
		Threshold:      0.8,
		CategoryStats: []contract.CategoryStat{
			{Category: "Data Risk", Risks: 2, Controls: 3},
			{Category: "Physical Risk", Risks: 1, Controls: 0},
		},
	}
	out := synth(nil).Synthesize(context.Background(), st)
	assert.Contains(t, out, "- Data Risk: 2 risks, 3 mitigating controls")
	assert.Contains(t, out, "1 risk sits in categories without any control")
}

func TestOtherIntentUsesHelpWhenModelFails(t *testing.T) {
	st := state.New("u1", "tell me a joke")
	out := synth(cannedLLM{err: errors.New("down")}).Synthesize(context.Background(), st)
	assert.Equal(t, helpText, out)
}
