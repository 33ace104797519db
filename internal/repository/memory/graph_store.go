package memory

import (
	"context"
	"sort"
	"sync"

	"iso-risk-agent-be/internal/repository/contract"
)

type edge struct {
	from contract.NodeRef
	rel  contract.RelationshipType
	to   contract.NodeRef
}

// GraphStore is an in-process property graph with MERGE semantics.
type GraphStore struct {
	mu    sync.RWMutex
	nodes map[contract.NodeRef]map[string]any
	edges map[edge]struct{}
}

var _ contract.GraphStore = (*GraphStore)(nil)

func NewGraphStore() *GraphStore {
	return &GraphStore{
		nodes: make(map[contract.NodeRef]map[string]any),
		edges: make(map[edge]struct{}),
	}
}

func (g *GraphStore) MergeNode(_ context.Context, node contract.NodeRef, props map[string]any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mergeLocked(node, props)
	return nil
}

func (g *GraphStore) mergeLocked(node contract.NodeRef, props map[string]any) {
	existing, ok := g.nodes[node]
	if !ok {
		existing = map[string]any{"id": node.Id}
		g.nodes[node] = existing
	}
	for k, v := range props {
		existing[k] = v
	}
}

func (g *GraphStore) MergeRelationship(_ context.Context, from contract.NodeRef, rel contract.RelationshipType, to contract.NodeRef) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mergeLocked(from, nil)
	g.mergeLocked(to, nil)
	g.edges[edge{from: from, rel: rel, to: to}] = struct{}{}
	return nil
}

func (g *GraphStore) DeleteNode(_ context.Context, node contract.NodeRef) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.nodes, node)
	for e := range g.edges {
		if e.from == node || e.to == node {
			delete(g.edges, e)
		}
	}
	return nil
}

func (g *GraphStore) CategoryStats(_ context.Context, userId string) ([]contract.CategoryStat, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	user := contract.NodeRef{Label: contract.LabelUser, Id: userId}
	byCategory := map[string]*contract.CategoryStat{}
	for e := range g.edges {
		if e.from != user || e.rel != contract.RelHasRisk {
			continue
		}
		category, _ := g.nodes[e.to]["category"].(string)
		stat, ok := byCategory[category]
		if !ok {
			stat = &contract.CategoryStat{Category: category}
			byCategory[category] = stat
		}
		stat.Risks++
		for m := range g.edges {
			if m.rel == contract.RelMitigates && m.to == e.to {
				stat.Controls++
			}
		}
	}

	out := make([]contract.CategoryStat, 0, len(byCategory))
	for _, s := range byCategory {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Risks > out[j].Risks })
	return out, nil
}

func (g *GraphStore) PeerControls(_ context.Context, domain, excludeUserId string, limitN int) ([]contract.PeerControl, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	counts := map[string]*contract.PeerControl{}
	for e := range g.edges {
		if e.rel != contract.RelSelectedControl || e.from.Id == excludeUserId {
			continue
		}
		if d, _ := g.nodes[e.from]["domain"].(string); d != domain {
			continue
		}
		props := g.nodes[e.to]
		title, _ := props["title"].(string)
		pc, ok := counts[title]
		if !ok {
			category, _ := props["domain_category"].(string)
			ref, _ := props["annex_reference"].(string)
			pc = &contract.PeerControl{Title: title, DomainCategory: category, AnnexReference: ref}
			counts[title] = pc
		}
		pc.UsageCount++
	}

	out := make([]contract.PeerControl, 0, len(counts))
	for _, pc := range counts {
		out = append(out, *pc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UsageCount == out[j].UsageCount {
			return out[i].Title < out[j].Title
		}
		return out[i].UsageCount > out[j].UsageCount
	})
	return limit(out, limitN), nil
}

// HasRelationship is used by tests to inspect the graph.
func (g *GraphStore) HasRelationship(from contract.NodeRef, rel contract.RelationshipType, to contract.NodeRef) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.edges[edge{from: from, rel: rel, to: to}]
	return ok
}

func (g *GraphStore) NodeCount(label contract.NodeLabel) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for ref := range g.nodes {
		if ref.Label == label {
			n++
		}
	}
	return n
}
