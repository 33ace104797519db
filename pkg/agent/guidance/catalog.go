// Package guidance serves the ISO/IEC 27001:2022 Annex A reference catalog
// used to enrich retrieval and generation prompts.
package guidance

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"iso-risk-agent-be/internal/entity"
	"iso-risk-agent-be/pkg/agent/state"
)

//go:embed annex_a.yaml
var annexYAML []byte

type Control struct {
	Reference string                `yaml:"ref"`
	Title     string                `yaml:"title"`
	Domain    entity.DomainCategory `yaml:"-"`
}

type KeywordGroup struct {
	Name     string   `yaml:"name"`
	Prefixes []string `yaml:"prefixes"`
	Keywords []string `yaml:"keywords"`
}

type catalogFile struct {
	Domains []struct {
		Name     string    `yaml:"name"`
		Controls []Control `yaml:"controls"`
	} `yaml:"domains"`
	KeywordGroups   []KeywordGroup      `yaml:"keyword_groups"`
	CategoryDomains map[string][]string `yaml:"category_domains"`
}

type Catalog struct {
	controls        []Control
	byRef           map[string]Control
	groups          []KeywordGroup
	categories      []string
	categoryDomains map[string][]entity.DomainCategory
}

// Load parses the embedded catalog.
func Load() (*Catalog, error) {
	return Parse(annexYAML)
}

func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse annex catalog: %w", err)
	}

	c := &Catalog{
		byRef:           make(map[string]Control),
		groups:          f.KeywordGroups,
		categoryDomains: make(map[string][]entity.DomainCategory),
	}
	for _, d := range f.Domains {
		domain, ok := entity.ParseDomainCategory(d.Name)
		if !ok {
			return nil, fmt.Errorf("annex catalog: unknown domain %q", d.Name)
		}
		for _, ctl := range d.Controls {
			if !strings.HasPrefix(ctl.Reference, domain.AnnexPrefix()) {
				return nil, fmt.Errorf("annex catalog: %s is not in domain %s", ctl.Reference, domain)
			}
			if _, dup := c.byRef[ctl.Reference]; dup {
				return nil, fmt.Errorf("annex catalog: duplicate reference %s", ctl.Reference)
			}
			ctl.Domain = domain
			c.controls = append(c.controls, ctl)
			c.byRef[ctl.Reference] = ctl
		}
	}
	for category, names := range f.CategoryDomains {
		for _, n := range names {
			domain, ok := entity.ParseDomainCategory(n)
			if !ok {
				return nil, fmt.Errorf("annex catalog: category %q maps to unknown domain %q", category, n)
			}
			key := strings.ToLower(category)
			c.categoryDomains[key] = append(c.categoryDomains[key], domain)
		}
		c.categories = append(c.categories, category)
	}
	// longest first so "Natural Disaster Risk" wins over shorter overlaps
	sort.Slice(c.categories, func(i, j int) bool {
		if len(c.categories[i]) != len(c.categories[j]) {
			return len(c.categories[i]) > len(c.categories[j])
		}
		return c.categories[i] < c.categories[j]
	})
	return c, nil
}

func (c *Catalog) Controls() []Control { return c.controls }

func (c *Catalog) ByReference(ref string) (Control, bool) {
	ctl, ok := c.byRef[strings.ToUpper(strings.TrimSpace(ref))]
	return ctl, ok
}

func (c *Catalog) ByDomain(domain entity.DomainCategory) []Control {
	var out []Control
	for _, ctl := range c.controls {
		if ctl.Domain == domain {
			out = append(out, ctl)
		}
	}
	return out
}

// DomainsForCategory maps a risk category to the Annex domains that usually
// treat it. Unknown categories fall back to Organizational.
func (c *Catalog) DomainsForCategory(category string) []entity.DomainCategory {
	if d, ok := c.categoryDomains[strings.ToLower(strings.TrimSpace(category))]; ok {
		return d
	}
	return []entity.DomainCategory{entity.DomainOrganizational}
}

// Categories lists the known risk categories, longest name first.
func (c *Catalog) Categories() []string { return c.categories }

// MatchedKeywords returns every group keyword found in text, deduplicated.
func (c *Catalog) MatchedKeywords(text string) []string {
	lower := strings.ToLower(text)
	seen := map[string]bool{}
	var out []string
	for _, g := range c.groups {
		for _, kw := range g.Keywords {
			if !seen[kw] && containsPhrase(lower, kw) {
				seen[kw] = true
				out = append(out, kw)
			}
		}
	}
	return out
}

// MatchGroups returns the keyword groups mentioned in text, in catalog order.
func (c *Catalog) MatchGroups(text string) []KeywordGroup {
	lower := strings.ToLower(text)
	var out []KeywordGroup
	for _, g := range c.groups {
		for _, kw := range g.Keywords {
			if containsPhrase(lower, kw) {
				out = append(out, g)
				break
			}
		}
	}
	return out
}

// Prefixes is the deduplicated union of the prefixes of every matched group.
func (c *Catalog) Prefixes(text string) []string {
	seen := map[string]bool{}
	var out []string
	for _, g := range c.MatchGroups(text) {
		for _, p := range g.Prefixes {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}

// Lookup ranks the catalog controls under the matched prefixes by how many
// query words appear in their titles. An explicit reference in the query
// ("A.5.19") is always returned first. Nil means no keyword matched.
func (c *Catalog) Lookup(query string, limit int) []state.GuidanceItem {
	var items []state.GuidanceItem
	for _, ref := range references(query) {
		if ctl, ok := c.byRef[ref]; ok {
			items = append(items, toItem(ctl, 1))
		}
	}

	prefixes := c.Prefixes(query)
	if len(prefixes) == 0 {
		return limitItems(Dedupe(items), limit)
	}

	words := queryWords(query)
	type ranked struct {
		ctl   Control
		score float64
		order int
	}
	var pool []ranked
	for i, ctl := range c.controls {
		if !hasAnyPrefix(ctl.Reference, prefixes) {
			continue
		}
		pool = append(pool, ranked{ctl: ctl, score: overlap(words, ctl.Title), order: i})
	}
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].score != pool[j].score {
			return pool[i].score > pool[j].score
		}
		return prefixRank(pool[i].ctl.Reference, prefixes) < prefixRank(pool[j].ctl.Reference, prefixes)
	})
	for _, r := range pool {
		items = append(items, toItem(r.ctl, r.score))
	}
	return limitItems(Dedupe(items), limit)
}

// Dedupe keeps the first item per reference.
func Dedupe(items []state.GuidanceItem) []state.GuidanceItem {
	seen := make(map[string]bool, len(items))
	out := items[:0:0]
	for _, it := range items {
		if seen[it.Reference] {
			continue
		}
		seen[it.Reference] = true
		out = append(out, it)
	}
	return out
}

func toItem(ctl Control, score float64) state.GuidanceItem {
	return state.GuidanceItem{
		Reference: ctl.Reference,
		Title:     ctl.Title,
		Domain:    string(ctl.Domain),
		Score:     score,
	}
}

func limitItems(items []state.GuidanceItem, limit int) []state.GuidanceItem {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

func hasAnyPrefix(ref string, prefixes []string) bool {
	return prefixRank(ref, prefixes) < len(prefixes)
}

func prefixRank(ref string, prefixes []string) int {
	for i, p := range prefixes {
		if strings.HasPrefix(ref, p) {
			return i
		}
	}
	return len(prefixes)
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "show": true, "controls": true,
	"control": true, "related": true, "what": true, "which": true, "about": true, "risk": true,
	"risks": true, "generate": true, "give": true, "list": true, "from": true, "that": true,
}

func queryWords(q string) []string {
	fields := strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var out []string
	for _, f := range fields {
		if len(f) > 2 && !stopWords[f] {
			out = append(out, f)
		}
	}
	return out
}

// overlap is the share of query words found in title, in [0,1].
func overlap(words []string, title string) float64 {
	if len(words) == 0 {
		return 0
	}
	t := strings.ToLower(title)
	hits := 0
	for _, w := range words {
		if containsPhrase(t, w) {
			hits++
		}
	}
	return float64(hits) / float64(len(words))
}

// references extracts Annex references such as A.8.24 from free text.
func references(q string) []string {
	var out []string
	for _, f := range strings.Fields(strings.ToUpper(q)) {
		f = strings.Trim(f, ",.;:()?!\"'")
		if strings.HasPrefix(f, "A.") && strings.Count(f, ".") == 2 {
			out = append(out, f)
		}
	}
	return out
}

// containsPhrase matches phrase in text on word boundaries, so "part"
// does not fire on "department".
func containsPhrase(text, phrase string) bool {
	for start := 0; ; {
		i := strings.Index(text[start:], phrase)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(phrase)
		if (i == 0 || !isWordByte(text[i-1])) && (end == len(text) || !isWordByte(text[end])) {
			return true
		}
		start = i + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || ('a' <= b && b <= 'z') || ('0' <= b && b <= '9')
}
