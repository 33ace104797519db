package guidance

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iso-risk-agent-be/internal/entity"
	"iso-risk-agent-be/internal/repository/memory"
)

func loadCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Load()
	require.NoError(t, err)
	return c
}

func TestCatalogLoadsAllDomains(t *testing.T) {
	c := loadCatalog(t)
	assert.Len(t, c.Controls(), 93)
	assert.Len(t, c.ByDomain(entity.DomainOrganizational), 37)
	assert.Len(t, c.ByDomain(entity.DomainPeople), 8)
	assert.Len(t, c.ByDomain(entity.DomainPhysical), 14)
	assert.Len(t, c.ByDomain(entity.DomainTechnological), 34)

	ctl, ok := c.ByReference("a.5.19")
	require.True(t, ok)
	assert.Equal(t, entity.DomainOrganizational, ctl.Domain)
}

func TestParseRejectsMisplacedReference(t *testing.T) {
	_, err := Parse([]byte(`
domains:
  - name: People
    controls:
      - {ref: A.8.1, title: User endpoint devices}
`))
	assert.Error(t, err)
}

func TestPrefixesByKeywordGroup(t *testing.T) {
	c := loadCatalog(t)
	cases := []struct {
		query string
		want  []string
	}{
		{"show me the controls related to supply chain", []string{"A.5.", "A.7.", "A.6."}},
		{"what do we have for disaster recovery", []string{"A.5.", "A.7."}},
		{"list our encryption controls", []string{"A.5.", "A.8.", "A.6."}},
		{"what about the finance department", nil},
		{"hello there", nil},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			assert.Equal(t, tc.want, c.Prefixes(tc.query))
		})
	}
}

func TestLookupRanksTitleOverlap(t *testing.T) {
	c := loadCatalog(t)
	items := c.Lookup("supplier relationships and supply chain", 5)
	require.NotEmpty(t, items)
	assert.Equal(t, "A.5.19", items[0].Reference)
	for _, it := range items {
		assert.False(t, strings.HasPrefix(it.Reference, "A.8."), it.Reference)
	}
	assert.LessOrEqual(t, len(items), 5)
}

func TestLookupExplicitReferenceFirst(t *testing.T) {
	c := loadCatalog(t)
	items := c.Lookup("how do we meet A.8.24?", 3)
	require.NotEmpty(t, items)
	assert.Equal(t, "A.8.24", items[0].Reference)
}

func TestLookupNoKeyword(t *testing.T) {
	c := loadCatalog(t)
	assert.Empty(t, c.Lookup("good morning", 5))
}

func TestDomainsForCategory(t *testing.T) {
	c := loadCatalog(t)
	assert.Equal(t,
		[]entity.DomainCategory{entity.DomainOrganizational, entity.DomainPhysical},
		c.DomainsForCategory("supply chain risk"))
	assert.Equal(t, []entity.DomainCategory{entity.DomainOrganizational}, c.DomainsForCategory("Unknown"))
}

func TestDedupeKeepsFirst(t *testing.T) {
	c := loadCatalog(t)
	a := c.Lookup("A.5.19 supplier", 0)
	doubled := append(append(a[:0:0], a...), a...)
	assert.Equal(t, a, Dedupe(doubled))
}

func TestMatchedKeywordsAndCategories(t *testing.T) {
	c := loadCatalog(t)
	assert.Equal(t, []string{"supply chain", "vendors"}, c.MatchedKeywords("Supply chain and vendors"))
	require.NotEmpty(t, c.Categories())
	assert.Equal(t, "Natural Disaster Risk", c.Categories()[0])
}

type countingEmbedder struct{ calls int }

func (e *countingEmbedder) Embed(context.Context, string) ([]float32, error) {
	e.calls++
	return []float32{1, 0}, nil
}

func TestIndexIsRepeatable(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)
	vectors := memory.NewVectorIndex()
	emb := &countingEmbedder{}

	var seen int
	n, err := Index(context.Background(), c, emb, vectors, time.Second, func(Control, error) { seen++ })
	require.NoError(t, err)
	assert.Equal(t, 93, n)
	assert.Equal(t, 93, seen)

	_, err = Index(context.Background(), c, emb, vectors, time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, 93, vectors.Count(entity.ArtifactGuidance))
}
