// Package retrieval gathers context for a request from every store in
// parallel and fuses it into one ranked bundle.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"iso-risk-agent-be/internal/entity"
	"iso-risk-agent-be/internal/pkg/logger"
	"iso-risk-agent-be/internal/repository/contract"
	"iso-risk-agent-be/pkg/agent/guidance"
	"iso-risk-agent-be/pkg/agent/state"
	"iso-risk-agent-be/pkg/embedding"
)

const module = "RetrievalFusion"

var ErrSourceUnavailable = errors.New("context source unavailable")

type Settings struct {
	Threshold        float64
	CandidateLimit   int
	OverFetchFactor  int
	GuidanceLimit    int
	PeerLimit        int
	EmbeddingTimeout time.Duration
	StoreTimeout     time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.Threshold <= 0 {
		s.Threshold = 0.8
	}
	if s.CandidateLimit <= 0 {
		s.CandidateLimit = 15
	}
	if s.OverFetchFactor < 3 {
		s.OverFetchFactor = 3
	}
	if s.GuidanceLimit <= 0 {
		s.GuidanceLimit = 5
	}
	if s.PeerLimit <= 0 {
		s.PeerLimit = 5
	}
	if s.EmbeddingTimeout <= 0 {
		s.EmbeddingTimeout = 15 * time.Second
	}
	if s.StoreTimeout <= 0 {
		s.StoreTimeout = 10 * time.Second
	}
	return s
}

// Request describes one retrieval. Query is the text to match; for
// generation it is the target risks' text rather than the user's sentence.
type Request struct {
	Intent    state.Intent
	Query     string
	UserId    string
	OrgDomain string
	Risks     []*entity.Risk
}

type Fusion struct {
	docs     contract.DocumentStore
	graph    contract.GraphStore
	vectors  contract.VectorIndex
	embedder embedding.EmbeddingProvider
	catalog  *guidance.Catalog
	logger   logger.ILogger
	settings Settings
}

func NewFusion(
	docs contract.DocumentStore,
	graph contract.GraphStore,
	vectors contract.VectorIndex,
	embedder embedding.EmbeddingProvider,
	catalog *guidance.Catalog,
	log logger.ILogger,
	settings Settings,
) *Fusion {
	return &Fusion{
		docs:     docs,
		graph:    graph,
		vectors:  vectors,
		embedder: embedder,
		catalog:  catalog,
		logger:   log,
		settings: settings.withDefaults(),
	}
}

func (f *Fusion) Threshold() float64 { return f.settings.Threshold }

type sourceFunc func(ctx context.Context, req Request, embed func() ([]float32, error)) ([]state.ContextItem, error)

type sourceResult struct {
	items []state.ContextItem
	err   error
}

// Retrieve never returns an error. Failed sources are recorded on the
// bundle; when all of them fail the bundle is marked NoContext.
func (f *Fusion) Retrieve(ctx context.Context, req Request) *state.ContextBundle {
	bundle := &state.ContextBundle{
		SourcesChecked: append([]state.SourceKind(nil), state.AllSources...),
		SourceErrors:   map[state.SourceKind]string{},
		Threshold:      f.settings.Threshold,
	}

	// the query is embedded at most once and shared by the vector and guidance sources
	embed := sync.OnceValues(func() ([]float32, error) {
		ectx, cancel := context.WithTimeout(ctx, f.settings.EmbeddingTimeout)
		defer cancel()
		if f.embedder == nil {
			return nil, embedding.ErrEmbeddingUnavailable
		}
		return f.embedder.Embed(ectx, req.Query)
	})

	primary := []struct {
		kind state.SourceKind
		run  sourceFunc
	}{
		{state.SourceExisting, f.existing},
		{state.SourceText, f.textSearch},
		{state.SourceVector, f.vectorSearch},
	}
	results := make([]sourceResult, len(primary))

	var (
		wg          sync.WaitGroup
		guidanceErr error
	)
	for i, src := range primary {
		wg.Add(1)
		go func(i int, run sourceFunc) {
			defer wg.Done()
			items, err := run(ctx, req, embed)
			results[i] = sourceResult{items: items, err: err}
		}(i, src.run)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		bundle.Guidance, guidanceErr = f.guidance(ctx, req, embed)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		f.enrichFromGraph(ctx, req, bundle)
	}()

	wg.Wait()

	bySource := make(map[state.SourceKind][]state.ContextItem, len(primary))
	for i, src := range primary {
		if err := results[i].err; err != nil {
			f.recordFailure(bundle, src.kind, err)
			continue
		}
		bySource[src.kind] = results[i].items
	}
	if guidanceErr != nil {
		f.recordFailure(bundle, state.SourceGuidance, guidanceErr)
	}

	bundle.Items = Fuse(bySource, f.settings.CandidateLimit, f.settings.Threshold)
	bundle.NoContext = len(bundle.SourceErrors) == len(state.AllSources)

	f.logger.Info(module, "Context retrieved", map[string]interface{}{
		"intent":         req.Intent.Kind,
		"items":          len(bundle.Items),
		"guidance":       len(bundle.Guidance),
		"failed_sources": len(bundle.SourceErrors),
		"no_context":     bundle.NoContext,
	})
	return bundle
}

func (f *Fusion) recordFailure(b *state.ContextBundle, kind state.SourceKind, err error) {
	b.SourceErrors[kind] = err.Error()
	f.logger.Warn(module, "SourceUnavailable", map[string]interface{}{
		"source": kind,
		"error":  err.Error(),
	})
}

// Fuse unions items by key, the most trusted source winning a collision.
// Score-less items always survive; scored items fill the remaining
// candidate slots best-first and are then dropped at or below threshold.
func Fuse(bySource map[state.SourceKind][]state.ContextItem, limit int, threshold float64) []state.ContextItem {
	seen := map[string]bool{}
	var scoreless, scored []state.ContextItem
	for _, kind := range state.AllSources {
		for _, it := range bySource[kind] {
			if it.Key == "" {
				it.Key = state.ItemKey(it.Kind, it.ArtifactId)
			}
			if seen[it.Key] {
				continue
			}
			seen[it.Key] = true
			it.Source = kind
			if it.Score == nil {
				scoreless = append(scoreless, it)
			} else {
				scored = append(scored, it)
			}
		}
	}

	sort.SliceStable(scored, func(i, j int) bool { return *scored[i].Score > *scored[j].Score })
	if room := limit - len(scoreless); len(scored) > room {
		if room < 0 {
			room = 0
		}
		scored = scored[:room]
	}

	out := scoreless
	for _, it := range scored {
		if *it.Score > threshold {
			out = append(out, it)
		}
	}
	return out
}

func (f *Fusion) existing(ctx context.Context, req Request, _ func() ([]float32, error)) ([]state.ContextItem, error) {
	if f.docs == nil {
		return nil, fmt.Errorf("%w: document store not configured", ErrSourceUnavailable)
	}
	ctx, cancel := context.WithTimeout(ctx, f.settings.StoreTimeout)
	defer cancel()

	filter := contract.ControlFilter{UserId: req.UserId, Limit: f.fetchLimit()}
	var items []state.ContextItem

	switch req.Intent.Kind {
	case state.IntentGenerateForRisk, state.IntentGenerateForAllRisks:
		if len(req.Risks) == 0 {
			return nil, nil
		}
		filter.RiskIds = riskIds(req.Risks)
	case state.IntentQueryByCategory:
		risks, err := f.docs.FindRisks(ctx, contract.RiskFilter{UserId: req.UserId, Category: req.Intent.Category.Category})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		}
		for _, r := range risks {
			items = append(items, riskItem(r, nil))
		}
		if len(risks) == 0 {
			return items, nil
		}
		filter.RiskIds = riskIds(risks)
	case state.IntentQueryGeneral:
		p := req.Intent.Query
		if d, ok := entity.ParseDomainCategory(p.Domain); ok {
			filter.DomainCategory = d
		}
		filter.AnnexPrefixes = p.AnnexPrefixes
		filter.Keywords = p.Keywords
	case state.IntentRelationshipQuery:
	default:
		filter.Keywords = f.catalog.MatchedKeywords(req.Query)
		if len(filter.Keywords) == 0 {
			return nil, nil
		}
	}

	controls, err := f.docs.FindControls(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	for _, c := range controls {
		items = append(items, controlItem(c, nil))
	}
	return items, nil
}

func (f *Fusion) textSearch(ctx context.Context, req Request, _ func() ([]float32, error)) ([]state.ContextItem, error) {
	if f.docs == nil {
		return nil, fmt.Errorf("%w: document store not configured", ErrSourceUnavailable)
	}
	terms := f.searchTerms(req)
	if len(terms) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, f.settings.StoreTimeout)
	defer cancel()

	controls, err := f.docs.FindControls(ctx, contract.ControlFilter{
		UserId:   req.UserId,
		Keywords: terms,
		Limit:    f.fetchLimit(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	items := make([]state.ContextItem, 0, len(controls))
	for _, c := range controls {
		items = append(items, controlItem(c, nil))
	}
	return items, nil
}

func (f *Fusion) vectorSearch(ctx context.Context, req Request, embed func() ([]float32, error)) ([]state.ContextItem, error) {
	if f.vectors == nil {
		return nil, fmt.Errorf("%w: vector index not configured", ErrSourceUnavailable)
	}
	vec, err := embed()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	q := contract.VectorQuery{
		Vector:  vec,
		Kind:    entity.ArtifactControl,
		OwnerId: req.UserId,
		Limit:   f.fetchLimit(),
	}
	switch req.Intent.Kind {
	case state.IntentRelationshipQuery:
		q.Kind = entity.ArtifactRisk
	case state.IntentGenerateForRisk, state.IntentGenerateForAllRisks:
		// similar controls chosen by anyone inform generation
		q.OwnerId = ""
	}

	ctx, cancel := context.WithTimeout(ctx, f.settings.StoreTimeout)
	defer cancel()
	hits, err := f.vectors.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	items := make([]state.ContextItem, 0, len(hits))
	for _, h := range hits {
		score := h.Similarity
		items = append(items, state.ContextItem{
			Key:         state.ItemKey(h.Record.Kind, h.Record.ArtifactId),
			Kind:        h.Record.Kind,
			ArtifactId:  h.Record.ArtifactId,
			Title:       h.Record.Title,
			Description: h.Record.Description,
			Category:    h.Record.Category,
			Reference:   h.Record.Reference,
			Score:       &score,
		})
	}
	return items, nil
}

// guidance uses the keyword catalog first and semantic search over seeded
// guidance embeddings only when no keyword matched.
func (f *Fusion) guidance(ctx context.Context, req Request, embed func() ([]float32, error)) ([]state.GuidanceItem, error) {
	if items := f.catalog.Lookup(req.Query, f.settings.GuidanceLimit); len(items) > 0 {
		return items, nil
	}
	if f.vectors == nil {
		return nil, nil
	}
	vec, err := embed()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.settings.StoreTimeout)
	defer cancel()
	hits, err := f.vectors.Search(ctx, contract.VectorQuery{
		Vector: vec,
		Kind:   entity.ArtifactGuidance,
		Limit:  f.settings.GuidanceLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	out := make([]state.GuidanceItem, 0, len(hits))
	for _, h := range hits {
		out = append(out, state.GuidanceItem{
			Reference:   h.Record.Reference,
			Title:       h.Record.Title,
			Domain:      h.Record.Category,
			Description: h.Record.Description,
			Score:       h.Similarity,
		})
	}
	return guidance.Dedupe(out), nil
}

// enrichFromGraph is best effort and not one of the counted sources.
func (f *Fusion) enrichFromGraph(ctx context.Context, req Request, b *state.ContextBundle) {
	if f.graph == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, f.settings.StoreTimeout)
	defer cancel()

	var err error
	switch {
	case req.Intent.Kind == state.IntentRelationshipQuery:
		b.CategoryStats, err = f.graph.CategoryStats(ctx, req.UserId)
	case req.Intent.Kind.IsGeneration() && req.OrgDomain != "":
		b.PeerControls, err = f.graph.PeerControls(ctx, req.OrgDomain, req.UserId, f.settings.PeerLimit)
	}
	if err != nil {
		f.logger.Warn(module, "Graph enrichment failed", map[string]interface{}{"error": err.Error()})
	}
}

func (f *Fusion) fetchLimit() int {
	return f.settings.CandidateLimit * f.settings.OverFetchFactor
}

func (f *Fusion) searchTerms(req Request) []string {
	if q := req.Intent.Query; q != nil && len(q.Keywords) > 0 {
		return q.Keywords
	}
	if kw := f.catalog.MatchedKeywords(req.Query); len(kw) > 0 {
		return kw
	}
	return significantWords(req.Query)
}

func riskIds(risks []*entity.Risk) []string {
	ids := make([]string, 0, len(risks))
	for _, r := range risks {
		ids = append(ids, r.Id)
	}
	return ids
}

func controlItem(c *entity.Control, score *float64) state.ContextItem {
	return state.ContextItem{
		Key:         state.ItemKey(entity.ArtifactControl, c.Id),
		Kind:        entity.ArtifactControl,
		ArtifactId:  c.Id,
		Title:       c.Title,
		Description: c.Description,
		Category:    string(c.DomainCategory),
		Reference:   c.AnnexReference,
		Score:       score,
		Control:     c,
	}
}

func riskItem(r *entity.Risk, score *float64) state.ContextItem {
	return state.ContextItem{
		Key:         state.ItemKey(entity.ArtifactRisk, r.Id),
		Kind:        entity.ArtifactRisk,
		ArtifactId:  r.Id,
		Title:       r.DisplayName(),
		Description: r.Description,
		Category:    r.Category,
		Score:       score,
		Risk:        r,
	}
}
