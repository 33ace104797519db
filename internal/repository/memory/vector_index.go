package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"iso-risk-agent-be/internal/entity"
	"iso-risk-agent-be/internal/repository/contract"
)

type vectorKey struct {
	kind entity.ArtifactKind
	id   string
}

// VectorIndex does brute-force cosine search. Fine for development data sizes.
type VectorIndex struct {
	mu      sync.RWMutex
	records map[vectorKey]*entity.EmbeddingRecord
}

var _ contract.VectorIndex = (*VectorIndex)(nil)

func NewVectorIndex() *VectorIndex {
	return &VectorIndex{records: make(map[vectorKey]*entity.EmbeddingRecord)}
}

func (v *VectorIndex) Search(_ context.Context, q contract.VectorQuery) ([]*contract.ScoredEmbedding, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	var out []*contract.ScoredEmbedding
	for key, rec := range v.records {
		if q.Kind != "" && key.kind != q.Kind {
			continue
		}
		if q.OwnerId != "" && rec.OwnerId != q.OwnerId {
			continue
		}
		cp := *rec
		out = append(out, &contract.ScoredEmbedding{Record: &cp, Similarity: cosine(q.Vector, rec.Vector)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	return limit(out, q.Limit), nil
}

func (v *VectorIndex) Upsert(_ context.Context, rec *entity.EmbeddingRecord) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	cp := *rec
	now := time.Now()
	key := vectorKey{kind: rec.Kind, id: rec.ArtifactId}
	if prev, ok := v.records[key]; ok {
		cp.CreatedAt = prev.CreatedAt
	} else {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	v.records[key] = &cp
	return nil
}

func (v *VectorIndex) Delete(_ context.Context, kind entity.ArtifactKind, artifactId string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.records, vectorKey{kind: kind, id: artifactId})
	return nil
}

func (v *VectorIndex) Count(kind entity.ArtifactKind) int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	n := 0
	for key := range v.records {
		if key.kind == kind {
			n++
		}
	}
	return n
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
