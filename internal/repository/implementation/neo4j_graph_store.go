package implementation

import (
	"context"
	"fmt"

	"iso-risk-agent-be/internal/repository/contract"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const (
	cypherCategoryStats = `
MATCH (u:User {id: $user_id})-[:HAS_RISK]->(r:Risk)
OPTIONAL MATCH (c:Control)-[:MITIGATES]->(r)
RETURN coalesce(r.category, '') AS category, count(DISTINCT r) AS risks, count(DISTINCT c) AS controls
ORDER BY risks DESC`

	cypherPeerControls = `
MATCH (u:User)-[:SELECTED_CONTROL]->(c:Control)
WHERE u.domain = $domain AND u.id <> $user_id
RETURN c.title AS title,
       coalesce(c.domain_category, '') AS domain_category,
       coalesce(c.annex_reference, '') AS annex_reference,
       count(*) AS usage
ORDER BY usage DESC, title
LIMIT $limit`
)

var (
	knownLabels = map[contract.NodeLabel]bool{
		contract.LabelUser: true, contract.LabelRisk: true, contract.LabelControl: true,
	}
	knownRelationships = map[contract.RelationshipType]bool{
		contract.RelHasRisk: true, contract.RelSelectedControl: true, contract.RelMitigates: true,
	}
)

// Neo4jGraphStore interpolates labels and relationship types, which Cypher
// cannot parameterise; both are checked against the closed sets above.
type Neo4jGraphStore struct {
	driver   neo4j.DriverWithContext
	database string
}

func NewNeo4jGraphStore(driver neo4j.DriverWithContext, database string) contract.GraphStore {
	return &Neo4jGraphStore{driver: driver, database: database}
}

func (g *Neo4jGraphStore) MergeNode(ctx context.Context, node contract.NodeRef, props map[string]any) error {
	if !knownLabels[node.Label] {
		return fmt.Errorf("unknown node label %q", node.Label)
	}
	if props == nil {
		props = map[string]any{}
	}
	cypher := fmt.Sprintf("MERGE (n:%s {id: $id}) SET n += $props", node.Label)
	return g.write(ctx, cypher, map[string]any{"id": node.Id, "props": props})
}

func (g *Neo4jGraphStore) MergeRelationship(ctx context.Context, from contract.NodeRef, rel contract.RelationshipType, to contract.NodeRef) error {
	if !knownLabels[from.Label] || !knownLabels[to.Label] {
		return fmt.Errorf("unknown node label in %s-[%s]->%s", from.Label, rel, to.Label)
	}
	if !knownRelationships[rel] {
		return fmt.Errorf("unknown relationship type %q", rel)
	}
	cypher := fmt.Sprintf("MERGE (a:%s {id: $from}) MERGE (b:%s {id: $to}) MERGE (a)-[:%s]->(b)",
		from.Label, to.Label, rel)
	return g.write(ctx, cypher, map[string]any{"from": from.Id, "to": to.Id})
}

func (g *Neo4jGraphStore) DeleteNode(ctx context.Context, node contract.NodeRef) error {
	if !knownLabels[node.Label] {
		return fmt.Errorf("unknown node label %q", node.Label)
	}
	return g.write(ctx, fmt.Sprintf("MATCH (n:%s {id: $id}) DETACH DELETE n", node.Label), map[string]any{"id": node.Id})
}

func (g *Neo4jGraphStore) CategoryStats(ctx context.Context, userId string) ([]contract.CategoryStat, error) {
	records, err := g.read(ctx, cypherCategoryStats, map[string]any{"user_id": userId})
	if err != nil {
		return nil, err
	}
	stats := make([]contract.CategoryStat, 0, len(records))
	for _, rec := range records {
		stats = append(stats, contract.CategoryStat{
			Category: stringValue(rec, "category"),
			Risks:    intValue(rec, "risks"),
			Controls: intValue(rec, "controls"),
		})
	}
	return stats, nil
}

func (g *Neo4jGraphStore) PeerControls(ctx context.Context, domain, excludeUserId string, limit int) ([]contract.PeerControl, error) {
	if limit <= 0 {
		limit = 5
	}
	records, err := g.read(ctx, cypherPeerControls, map[string]any{
		"domain": domain, "user_id": excludeUserId, "limit": limit,
	})
	if err != nil {
		return nil, err
	}
	peers := make([]contract.PeerControl, 0, len(records))
	for _, rec := range records {
		peers = append(peers, contract.PeerControl{
			Title:          stringValue(rec, "title"),
			DomainCategory: stringValue(rec, "domain_category"),
			AnnexReference: stringValue(rec, "annex_reference"),
			UsageCount:     intValue(rec, "usage"),
		})
	}
	return peers, nil
}

func (g *Neo4jGraphStore) write(ctx context.Context, cypher string, params map[string]any) error {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: g.database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	return err
}

func (g *Neo4jGraphStore) read(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: g.database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return out.([]*neo4j.Record), nil
}

func stringValue(rec *neo4j.Record, key string) string {
	v, _ := rec.Get(key)
	s, _ := v.(string)
	return s
}

func intValue(rec *neo4j.Record, key string) int {
	v, _ := rec.Get(key)
	n, _ := v.(int64)
	return int(n)
}
