package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iso-risk-agent-be/internal/entity"
)

func TestIntentValidate(t *testing.T) {
	cases := []struct {
		name    string
		intent  Intent
		wantErr bool
	}{
		{"generate for risk", GenerateForRisk("r1"), false},
		{"generate for risk without id", Intent{Kind: IntentGenerateForRisk, Risk: &RiskParams{}}, true},
		{"generate for all risks", GenerateForAllRisks(""), false},
		{"category", QueryByCategory("Supply Chain Risk"), false},
		{"category empty", QueryByCategory(""), true},
		{"general", QueryGeneral(QueryParams{Domain: "Technological"}), false},
		{"relationship", RelationshipQuery(), false},
		{"other", OtherIntent(), false},
		{"other with params", Intent{Kind: IntentOther, Query: &QueryParams{}}, true},
		{"two param sets", Intent{Kind: IntentGenerateForRisk, Risk: &RiskParams{RiskId: "r"}, Query: &QueryParams{}}, true},
		{"unknown kind", Intent{Kind: "summarise"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.intent.Validate()
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidIntent)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStateRoundTripKeepsSelectionData(t *testing.T) {
	s := New("u1", "generate controls for risk r1")
	s.SessionId = "s1"
	s.Intent = GenerateForRisk("r1")
	s.PendingSelection = true
	s.Current = NodePaused
	s.GeneratedControls = []*entity.Control{
		{Id: "a", ControlId: "CTRL-r1-001", RiskId: "r1", UserId: "u1", DomainCategory: entity.DomainTechnological},
	}

	data, err := s.Marshal()
	require.NoError(t, err)

	back, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, s.Intent, back.Intent)
	assert.Equal(t, NodePaused, back.Current)
	require.Len(t, back.GeneratedControls, 1)
	assert.Equal(t, "CTRL-r1-001", back.GeneratedControls[0].ControlId)
}

func TestSelectedControlsMatchesEitherIdentifier(t *testing.T) {
	s := &AgentState{
		GeneratedControls: []*entity.Control{
			{Id: "a", ControlId: "CTRL-r1-001"},
			{Id: "b", ControlId: "CTRL-r1-002"},
			{Id: "c", ControlId: "CTRL-r1-003"},
		},
		SelectedControlIds: []string{"CTRL-r1-001", "c", "missing"},
	}
	got := s.SelectedControls()
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Id)
	assert.Equal(t, "c", got[1].Id)

	s.SelectedControlIds = nil
	assert.Empty(t, s.SelectedControls())
}

func TestBundleSourceHealth(t *testing.T) {
	b := &ContextBundle{
		SourcesChecked: AllSources,
		SourceErrors:   map[SourceKind]string{SourceVector: "timeout", SourceExisting: "down"},
	}
	assert.Equal(t, []SourceKind{SourceExisting, SourceVector}, b.FailedSources())
	assert.Equal(t, []SourceKind{SourceText, SourceGuidance}, b.HealthySources())
	assert.True(t, b.Empty())

	var nilBundle *ContextBundle
	assert.True(t, nilBundle.Empty())
	assert.Nil(t, nilBundle.Controls())
}

func TestSourceTrustOrder(t *testing.T) {
	assert.Less(t, SourceExisting.Trust(), SourceText.Trust())
	assert.Less(t, SourceText.Trust(), SourceVector.Trust())
	assert.Less(t, SourceVector.Trust(), SourceGuidance.Trust())
}

func TestCommitResultPartial(t *testing.T) {
	r := &CommitResult{
		SavedIds:  []string{"a", "b"},
		Documents: StoreOutcome{Attempted: 2, Succeeded: 2},
		Graph:     StoreOutcome{Attempted: 2, Succeeded: 2},
		Vector:    StoreOutcome{Attempted: 2, Succeeded: 1, FailedIds: []string{"b"}},
	}
	assert.Equal(t, 2, r.Saved())
	assert.Equal(t, 2, r.Linked())
	assert.Equal(t, 1, r.Searchable())
	assert.True(t, r.Partial())
}
