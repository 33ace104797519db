package memory

import (
	"context"
	"testing"
	"time"

	"iso-risk-agent-be/internal/entity"
	"iso-risk-agent-be/internal/repository/contract"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentStoreControlFilters(t *testing.T) {
	ctx := context.Background()
	s := NewDocumentStore()
	now := time.Now()

	_, err := s.UpsertControls(ctx, []*entity.Control{
		{Id: "1", ControlId: "CTRL-r1-001", Title: "Supplier security review", RiskId: "r1", UserId: "u1", AnnexReference: "A.5.19", DomainCategory: entity.DomainOrganizational, CreatedAt: now},
		{Id: "2", ControlId: "CTRL-r1-002", Title: "Badge access", RiskId: "r1", UserId: "u1", AnnexReference: "A.7.2", DomainCategory: entity.DomainPhysical, CreatedAt: now.Add(time.Second)},
		{Id: "3", ControlId: "CTRL-r2-001", Title: "Vendor onboarding", RiskId: "r2", UserId: "u2", AnnexReference: "A.5.20", DomainCategory: entity.DomainOrganizational, CreatedAt: now},
	})
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter contract.ControlFilter
		want   []string
	}{
		{"by user", contract.ControlFilter{UserId: "u1"}, []string{"1", "2"}},
		{"keywords are case insensitive", contract.ControlFilter{UserId: "u1", Keywords: []string{"SUPPLIER"}}, []string{"1"}},
		{"annex prefix", contract.ControlFilter{AnnexPrefixes: []string{"A.5."}}, []string{"1", "3"}},
		{"domain", contract.ControlFilter{DomainCategory: entity.DomainPhysical}, []string{"2"}},
		{"risk ids", contract.ControlFilter{RiskIds: []string{"r2"}}, []string{"3"}},
		{"limit", contract.ControlFilter{UserId: "u1", Limit: 1}, []string{"1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.FindControls(ctx, tt.filter)
			require.NoError(t, err)
			var ids []string
			for _, c := range got {
				ids = append(ids, c.Id)
			}
			assert.ElementsMatch(t, tt.want, ids)
		})
	}

	assert.ErrorIs(t, s.DeleteControl(ctx, "u2", "1"), contract.ErrNotFound)
	assert.NoError(t, s.DeleteControl(ctx, "u1", "1"))
}

func TestGraphStoreMergeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	g := NewGraphStore()
	user := contract.NodeRef{Label: contract.LabelUser, Id: "u1"}
	risk := contract.NodeRef{Label: contract.LabelRisk, Id: "r1"}
	ctrl := contract.NodeRef{Label: contract.LabelControl, Id: "c1"}

	for i := 0; i < 2; i++ {
		require.NoError(t, g.MergeNode(ctx, risk, map[string]any{"category": "Supply Chain Risk"}))
		require.NoError(t, g.MergeRelationship(ctx, user, contract.RelHasRisk, risk))
		require.NoError(t, g.MergeRelationship(ctx, ctrl, contract.RelMitigates, risk))
	}

	assert.Equal(t, 1, g.NodeCount(contract.LabelRisk))
	assert.Equal(t, 1, g.NodeCount(contract.LabelControl))

	stats, err := g.CategoryStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []contract.CategoryStat{{Category: "Supply Chain Risk", Risks: 1, Controls: 1}}, stats)

	require.NoError(t, g.DeleteNode(ctx, ctrl))
	assert.False(t, g.HasRelationship(ctrl, contract.RelMitigates, risk))
}

func TestGraphStorePeerControls(t *testing.T) {
	ctx := context.Background()
	g := NewGraphStore()

	for _, u := range []string{"u1", "u2", "u3"} {
		require.NoError(t, g.MergeNode(ctx, contract.NodeRef{Label: contract.LabelUser, Id: u}, map[string]any{"domain": "healthcare"}))
	}
	require.NoError(t, g.MergeNode(ctx, contract.NodeRef{Label: contract.LabelControl, Id: "c1"}, map[string]any{"title": "Backups", "annex_reference": "A.8.13"}))
	require.NoError(t, g.MergeNode(ctx, contract.NodeRef{Label: contract.LabelControl, Id: "c2"}, map[string]any{"title": "Backups"}))
	require.NoError(t, g.MergeRelationship(ctx, contract.NodeRef{Label: contract.LabelUser, Id: "u2"}, contract.RelSelectedControl, contract.NodeRef{Label: contract.LabelControl, Id: "c1"}))
	require.NoError(t, g.MergeRelationship(ctx, contract.NodeRef{Label: contract.LabelUser, Id: "u3"}, contract.RelSelectedControl, contract.NodeRef{Label: contract.LabelControl, Id: "c2"}))
	require.NoError(t, g.MergeRelationship(ctx, contract.NodeRef{Label: contract.LabelUser, Id: "u1"}, contract.RelSelectedControl, contract.NodeRef{Label: contract.LabelControl, Id: "c1"}))

	peers, err := g.PeerControls(ctx, "healthcare", "u1", 5)
	require.NoError(t, err)
	require.Len(t, peers, 1)
	assert.Equal(t, "Backups", peers[0].Title)
	assert.Equal(t, 2, peers[0].UsageCount)
}

func TestVectorIndexUpsertKeepsOneRowPerArtifact(t *testing.T) {
	ctx := context.Background()
	v := NewVectorIndex()

	require.NoError(t, v.Upsert(ctx, &entity.EmbeddingRecord{Kind: entity.ArtifactControl, ArtifactId: "c1", OwnerId: "u1", Vector: []float32{1, 0}}))
	require.NoError(t, v.Upsert(ctx, &entity.EmbeddingRecord{Kind: entity.ArtifactControl, ArtifactId: "c1", OwnerId: "u1", Vector: []float32{0, 1}}))
	require.NoError(t, v.Upsert(ctx, &entity.EmbeddingRecord{Kind: entity.ArtifactRisk, ArtifactId: "c1", OwnerId: "u1", Vector: []float32{1, 0}}))

	assert.Equal(t, 1, v.Count(entity.ArtifactControl))

	res, err := v.Search(ctx, contract.VectorQuery{Vector: []float32{0, 1}, Kind: entity.ArtifactControl, OwnerId: "u1", Limit: 5})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.InDelta(t, 1.0, res[0].Similarity, 1e-9)

	res, err = v.Search(ctx, contract.VectorQuery{Vector: []float32{0, 1}, Kind: entity.ArtifactControl, OwnerId: "someone-else"})
	require.NoError(t, err)
	assert.Empty(t, res)
}
