package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iso-risk-agent-be/internal/entity"
	"iso-risk-agent-be/internal/pkg/logger"
	"iso-risk-agent-be/pkg/agent/guidance"
	"iso-risk-agent-be/pkg/agent/state"
	"iso-risk-agent-be/pkg/llm"
)

type stubLLM struct {
	reply string
	err   error
	calls int
}

func (s *stubLLM) Chat(ctx context.Context, _ []llm.Message, opts ...llm.Option) (string, error) {
	return s.Generate(ctx, "", opts...)
}

func (s *stubLLM) Generate(_ context.Context, _ string, _ ...llm.Option) (string, error) {
	s.calls++
	return s.reply, s.err
}

func newClassifier(t *testing.T, model *stubLLM) *Classifier {
	t.Helper()
	catalog, err := guidance.Load()
	require.NoError(t, err)
	return NewClassifier(model, catalog, logger.NewNopLogger())
}

func TestClassifyByRules(t *testing.T) {
	cases := []struct {
		query string
		want  state.Intent
	}{
		{"Generate controls for risk RISK-001", state.GenerateForRisk("RISK-001")},
		{"please suggest controls for risk 3f2b9c1e-0a4d-4c5e-9f10-aa11bb22cc33", state.GenerateForRisk("3f2b9c1e-0a4d-4c5e-9f10-aa11bb22cc33")},
		{"Generate controls for all my risks", state.GenerateForAllRisks("")},
		{"create controls for every supply chain risk", state.GenerateForAllRisks("Supply Chain Risk")},
		{"Draft some controls please", state.GenerateForAllRisks("")},
		{"Show controls by risk category Operational Risk", state.QueryByCategory("Operational Risk")},
		{"list controls in category: Vendor Management", state.QueryByCategory("Vendor Management")},
		{"How many risks are mitigated by my controls?", state.RelationshipQuery()},
		{"show the graph of my risks", state.RelationshipQuery()},
		{"Show me the controls related to supply chain", state.QueryGeneral(state.QueryParams{Keywords: []string{"supply chain"}})},
		{"Show me Technological controls", state.QueryGeneral(state.QueryParams{Domain: "Technological"})},
		{"what do we do about A.8.24", state.QueryGeneral(state.QueryParams{
			Domain:        "Technological",
			Keywords:      []string{"a.8"},
			AnnexPrefixes: []string{"A.8."},
		})},
		{"list my controls", state.QueryGeneral(state.QueryParams{})},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			model := &stubLLM{err: errors.New("must not be called")}
			got := newClassifier(t, model).Classify(context.Background(), tc.query, nil)
			assert.Equal(t, tc.want, got)
			assert.NoError(t, got.Validate())
			assert.Zero(t, model.calls)
		})
	}
}

func TestDomainPhrasingIsNeverCategory(t *testing.T) {
	c := newClassifier(t, &stubLLM{})
	for _, q := range []string{
		"supply chain controls",
		"show vendor controls",
		"what security controls do we have",
		"controls for third-party suppliers",
	} {
		got := c.Classify(context.Background(), q, nil)
		assert.NotEqual(t, state.IntentQueryByCategory, got.Kind, q)
		assert.Equal(t, state.IntentQueryGeneral, got.Kind, q)
	}
}

func TestClassifyFallsBackToModel(t *testing.T) {
	model := &stubLLM{reply: "Sure!\n```json\n{\"intent\": \"generate_controls_for_risk\", \"risk_id\": \"R7\"}\n```"}
	user := &entity.User{OrganizationName: "Acme", Domain: "Manufacturing"}

	got := newClassifier(t, model).Classify(context.Background(), "help me treat R7 please", user)
	assert.Equal(t, state.GenerateForRisk("R7"), got)
	assert.Equal(t, 1, model.calls)
}

func TestClassifyDegradesToOther(t *testing.T) {
	cases := []struct {
		name  string
		model *stubLLM
	}{
		{"unparseable", &stubLLM{reply: "I think it is about controls"}},
		{"unknown intent", &stubLLM{reply: `{"intent": "summarise"}`}},
		{"missing risk id", &stubLLM{reply: `{"intent": "generate_controls_for_risk"}`}},
		{"provider down", &stubLLM{err: llm.ErrGenerationUnavailable}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := newClassifier(t, tc.model).Classify(context.Background(), "hello there", nil)
			assert.Equal(t, state.OtherIntent(), got)
		})
	}
}

func TestClassifyEmptyQuery(t *testing.T) {
	model := &stubLLM{}
	assert.Equal(t, state.OtherIntent(), newClassifier(t, model).Classify(context.Background(), "   ", nil))
	assert.Zero(t, model.calls)
}
