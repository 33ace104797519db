package generation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iso-risk-agent-be/internal/entity"
	"iso-risk-agent-be/internal/pkg/logger"
	"iso-risk-agent-be/internal/repository/memory"
	"iso-risk-agent-be/pkg/agent/guidance"
	"iso-risk-agent-be/pkg/agent/state"
	"iso-risk-agent-be/pkg/llm"
)

type scriptedLLM struct {
	replies []string
	err     error
	prompts []string
}

func (s *scriptedLLM) Chat(ctx context.Context, _ []llm.Message, opts ...llm.Option) (string, error) {
	return s.Generate(ctx, "", opts...)
}

func (s *scriptedLLM) Generate(_ context.Context, prompt string, _ ...llm.Option) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "", errors.New("no scripted reply")
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r, nil
}

const threeControls = `Here you go:
[
 {"title": "Supplier security agreements", "description": "Bind suppliers to security clauses", "domain_category": "Organizational Controls", "annex_reference": "a.5.20", "control_statement": "All supplier contracts include security requirements.", "implementation_guidance": "Update the contract template."},
 {"title": "Supplier monitoring", "description": "Review supplier performance", "domain_category": "", "annex_reference": "A.5.22"},
 {"title": "Secure delivery areas", "description": "Control loading bays", "domain_category": "nonsense"}
]`

func newGenerator(t *testing.T, model llm.LLMProvider, docs *memory.DocumentStore) *Generator {
	t.Helper()
	catalog, err := guidance.Load()
	require.NoError(t, err)
	return NewGenerator(model, docs, catalog, logger.NewNopLogger(), Settings{MaxRisksPerRun: 3})
}

func TestBackfillInvariant(t *testing.T) {
	risk := &entity.Risk{Id: "r1"}
	controls := []*entity.Control{
		{Title: "a"},
		{Title: "b", ControlId: "CTRL-r1-001"},
		{Title: "c", ControlId: "CTRL-r1-001"},
		{Title: "d", ControlId: "FIN-001", RiskId: "someone-else", UserId: "intruder"},
	}
	Backfill(controls, risk, "u1", 1)

	seen := map[string]bool{}
	for _, c := range controls {
		require.NoError(t, c.Validate(), c.Title)
		assert.Equal(t, "r1", c.RiskId)
		assert.Equal(t, "u1", c.UserId)
		assert.True(t, strings.HasPrefix(c.ControlId, "CTRL-r1-"), c.ControlId)
		assert.False(t, seen[c.ControlId], "duplicate %s", c.ControlId)
		seen[c.ControlId] = true
		assert.Equal(t, ControlUUID("r1", c.ControlId), c.Id)
		assert.False(t, c.CreatedAt.IsZero())
	}
	assert.Equal(t, "CTRL-r1-001", controls[1].ControlId)
}

func TestBackfillIsDeterministic(t *testing.T) {
	mk := func() []*entity.Control { return []*entity.Control{{Title: "a"}, {Title: "b"}} }
	first, second := mk(), mk()
	Backfill(first, &entity.Risk{Id: "r1"}, "u1", 3)
	Backfill(second, &entity.Risk{Id: "r1"}, "u1", 3)
	for i := range first {
		assert.Equal(t, first[i].Id, second[i].Id)
		assert.Equal(t, first[i].ControlId, second[i].ControlId)
	}
	assert.Equal(t, "CTRL-r1-003", first[0].ControlId)
}

func TestResolveTargetsSpecificRiskAlreadyCovered(t *testing.T) {
	docs := memory.NewDocumentStore()
	ctx := context.Background()
	require.NoError(t, docs.UpsertRisk(ctx, &entity.Risk{Id: "r1", UserId: "u1", Title: "Vendor outage"}))
	_, err := docs.UpsertControls(ctx, []*entity.Control{
		{Id: "c1", ControlId: "CTRL-r1-001", RiskId: "r1", UserId: "u1"},
		{Id: "c2", ControlId: "CTRL-r1-002", RiskId: "r1", UserId: "u1"},
	})
	require.NoError(t, err)

	targets, err := newGenerator(t, &scriptedLLM{}, docs).ResolveTargets(ctx, state.GenerateForRisk("r1"), "u1")
	require.NoError(t, err)
	assert.Empty(t, targets.Risks)
	assert.Contains(t, targets.Notice, "already have 2 controls")
}

func TestResolveTargetsUnknownRisk(t *testing.T) {
	targets, err := newGenerator(t, &scriptedLLM{}, memory.NewDocumentStore()).
		ResolveTargets(context.Background(), state.GenerateForRisk("nope"), "u1")
	require.NoError(t, err)
	assert.Empty(t, targets.Risks)
	assert.Contains(t, targets.Notice, "couldn't find risk nope")
}

func TestResolveTargetsAllRisksSkipsCoveredAndLimits(t *testing.T) {
	docs := memory.NewDocumentStore()
	ctx := context.Background()
	for _, id := range []string{"r1", "r2", "r3", "r4", "r5"} {
		require.NoError(t, docs.UpsertRisk(ctx, &entity.Risk{Id: id, UserId: "u1", Category: "Data Risk"}))
	}
	_, err := docs.UpsertControls(ctx, []*entity.Control{{Id: "c1", ControlId: "CTRL-r2-001", RiskId: "r2", UserId: "u1"}})
	require.NoError(t, err)

	targets, err := newGenerator(t, &scriptedLLM{}, docs).ResolveTargets(ctx, state.GenerateForAllRisks(""), "u1")
	require.NoError(t, err)
	require.Len(t, targets.Risks, 3)
	for _, r := range targets.Risks {
		assert.NotEqual(t, "r2", r.Id)
	}
	assert.Equal(t, 1, targets.Existing["r2"])
}

func TestGenerateParsesAndBackfills(t *testing.T) {
	model := &scriptedLLM{replies: []string{threeControls}}
	g := newGenerator(t, model, memory.NewDocumentStore())

	risk := &entity.Risk{Id: "r1", Title: "Supplier breach", Category: "Supply Chain Risk"}
	bundle := &state.ContextBundle{Guidance: []state.GuidanceItem{{Reference: "A.5.19", Title: "Information security in supplier relationships"}}}
	controls, failures := g.Generate(context.Background(), &Targets{Risks: []*entity.Risk{risk}}, &entity.User{OrganizationName: "Acme"}, "u1", bundle)

	assert.Empty(t, failures)
	require.Len(t, controls, 3)
	assert.Equal(t, entity.DomainOrganizational, controls[0].DomainCategory)
	assert.Equal(t, "A.5.20", controls[0].AnnexReference)
	assert.Equal(t, entity.DomainOrganizational, controls[1].DomainCategory, "derived from the Annex reference")
	assert.Equal(t, entity.DomainOrganizational, controls[2].DomainCategory, "falls back to the category's first domain")
	for i, c := range controls {
		assert.NoError(t, c.Validate())
		assert.Equal(t, entity.ControlIdFor("r1", i+1), c.ControlId)
	}

	require.Len(t, model.prompts, 1)
	assert.Contains(t, model.prompts[0], "A.5.19")
	assert.Contains(t, model.prompts[0], "Acme")
}

func TestGenerateCapsCandidates(t *testing.T) {
	var b strings.Builder
	b.WriteString("[")
	for i := 0; i < 8; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(`{"title": "control", "domain_category": "People"}`)
	}
	b.WriteString("]")

	g := newGenerator(t, &scriptedLLM{replies: []string{b.String()}}, memory.NewDocumentStore())
	controls, _ := g.Generate(context.Background(), &Targets{Risks: []*entity.Risk{{Id: "r1"}}}, nil, "u1", nil)
	assert.Len(t, controls, MaxCandidates)
}

func TestGenerateIsolatesPerRiskFailures(t *testing.T) {
	model := &scriptedLLM{replies: []string{"sorry, I can't help with that", threeControls}}
	g := newGenerator(t, model, memory.NewDocumentStore())

	controls, failures := g.Generate(context.Background(), &Targets{Risks: []*entity.Risk{{Id: "r1"}, {Id: "r2"}}}, nil, "u1", nil)
	require.Len(t, failures, 1)
	assert.Equal(t, "r1", failures[0].RiskId)
	assert.ErrorIs(t, failures[0].Err, ErrNoCandidates)
	require.Len(t, controls, 3)
	assert.Equal(t, "r2", controls[0].RiskId)
}
