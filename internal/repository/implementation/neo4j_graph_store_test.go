package implementation

import (
	"context"
	"testing"

	"iso-risk-agent-be/internal/repository/contract"

	"github.com/stretchr/testify/assert"
)

// Label and relationship checks run before the driver is touched.
func TestNeo4jGraphStoreRejectsUnknownIdentifiers(t *testing.T) {
	g := NewNeo4jGraphStore(nil, "neo4j")
	ctx := context.Background()

	err := g.MergeNode(ctx, contract.NodeRef{Label: "Risk) DETACH DELETE (x", Id: "r1"}, nil)
	assert.ErrorContains(t, err, "unknown node label")

	err = g.MergeRelationship(ctx,
		contract.NodeRef{Label: contract.LabelUser, Id: "u1"},
		contract.RelationshipType("OWNS"),
		contract.NodeRef{Label: contract.LabelRisk, Id: "r1"})
	assert.ErrorContains(t, err, "unknown relationship type")

	err = g.DeleteNode(ctx, contract.NodeRef{Label: "Note", Id: "n1"})
	assert.Error(t, err)
}
