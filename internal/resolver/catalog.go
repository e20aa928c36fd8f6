package resolver

import (
	"sort"
	"strings"

	"github.com/defilens/defilens/internal/llama"
	"github.com/defilens/defilens/internal/model"
)

type candidateKind int

const (
	candSlug candidateKind = iota
	candName
	candParent
)

// candidate is one normalized string the fuzzy matcher scans, mapped
// back to the slug it resolves to.
type candidate struct {
	key  string
	kind candidateKind
	slug string
}

// catalog holds the lookup structures built from one /protocols
// snapshot. Matching against the same catalog is deterministic.
type catalog struct {
	bySlug         map[string]llama.ListedProtocol
	byName         map[string]llama.ListedProtocol
	parentChildren map[string][]llama.ListedProtocol
	parentNames    map[string]string // derived base name -> parent slug
	candidates     []candidate       // sorted by key
	displayNames   []string          // for "did you mean" suggestions
}

func buildCatalog(list []llama.ListedProtocol) *catalog {
	c := &catalog{
		bySlug:         make(map[string]llama.ListedProtocol, len(list)),
		byName:         make(map[string]llama.ListedProtocol, len(list)),
		parentChildren: make(map[string][]llama.ListedProtocol),
		parentNames:    make(map[string]string),
	}

	for _, p := range list {
		if p.Slug == "" {
			continue
		}
		c.bySlug[normalize(p.Slug)] = p
		if p.Name != "" {
			c.byName[normalize(p.Name)] = p
			c.displayNames = append(c.displayNames, p.Name)
		}
		if ps, ok := parentSlugOf(p); ok {
			c.parentChildren[ps] = append(c.parentChildren[ps], p)
		}
	}

	// Parents are addressable by a display name derived from their
	// children ("AAVE V3" contributes "aave").
	for ps, children := range c.parentChildren {
		for _, child := range children {
			if base := baseName(child.Name); base != "" {
				c.parentNames[normalize(base)] = ps
			}
		}
	}

	seen := make(map[string]struct{})
	add := func(key string, kind candidateKind, slug string) {
		if key == "" {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		c.candidates = append(c.candidates, candidate{key: key, kind: kind, slug: slug})
	}
	for key, p := range c.bySlug {
		add(key, candSlug, p.Slug)
	}
	for key, p := range c.byName {
		add(key, candName, p.Slug)
	}
	for ps := range c.parentChildren {
		add(normalize(ps), candParent, ps)
		add(normalize(strings.ReplaceAll(ps, "-", " ")), candParent, ps)
	}
	for key, ps := range c.parentNames {
		add(key, candParent, ps)
	}

	// Sorted scan order makes fuzzy ties deterministic.
	sort.Slice(c.candidates, func(i, j int) bool { return c.candidates[i].key < c.candidates[j].key })
	sort.Strings(c.displayNames)

	return c
}

// parentSlugOf extracts the parent slug from the "parent#<slug>"
// reference format.
func parentSlugOf(p llama.ListedProtocol) (string, bool) {
	const prefix = "parent#"
	if !strings.HasPrefix(p.ParentProtocol, prefix) {
		return "", false
	}
	ps := strings.ToLower(strings.TrimPrefix(p.ParentProtocol, prefix))
	if ps == "" {
		return "", false
	}
	return ps, true
}

// baseName strips a trailing version suffix from a child protocol
// name ("AAVE V3" -> "AAVE").
func baseName(name string) string {
	for _, sep := range []string{" V", " v"} {
		if idx := strings.Index(name, sep); idx > 0 {
			name = name[:idx]
		}
	}
	return strings.TrimSpace(name)
}

// parentSlugFor checks the three parent addressing forms: slug,
// slug-as-words, and derived display name.
func (c *catalog) parentSlugFor(q string) (string, bool) {
	if _, ok := c.parentChildren[q]; ok {
		return q, true
	}
	for ps := range c.parentChildren {
		if q == strings.ReplaceAll(ps, "-", " ") {
			return ps, true
		}
	}
	if ps, ok := c.parentNames[q]; ok {
		return ps, true
	}
	return "", false
}

// closest returns the best-scoring candidate for q. Ties resolve to
// the lexicographically first key because candidates are sorted.
func (c *catalog) closest(q string) (candidate, float64) {
	var best candidate
	bestScore := -1.0
	for _, cand := range c.candidates {
		if s := similarity(q, cand.key); s > bestScore {
			best = cand
			bestScore = s
		}
	}
	return best, bestScore
}

// suggest collects up to max display names above the looser cutoff,
// ranked by similarity then name.
func (c *catalog) suggest(q string, cutoff float64, max int) []string {
	type scored struct {
		name  string
		score float64
	}
	var hits []scored
	for _, name := range c.displayNames {
		if s := similarity(q, normalize(name)); s >= cutoff {
			hits = append(hits, scored{name: name, score: s})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].name < hits[j].name
	})
	if len(hits) > max {
		hits = hits[:max]
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.name
	}
	return out
}

// childRef builds a ProtocolRef for a directly-listed protocol.
func childRef(query string, p llama.ListedProtocol, kind model.MatchKind, confidence float64) model.ProtocolRef {
	return model.ProtocolRef{
		Query:      query,
		Slug:       p.Slug,
		Name:       p.Name,
		Category:   p.Category,
		Confidence: confidence,
		MatchKind:  kind,
	}
}

// parentRef builds a ProtocolRef for a parent protocol: children
// attached, category derived from the children's most common one.
func (c *catalog) parentRef(query, ps string, kind model.MatchKind, confidence float64) model.ProtocolRef {
	children := c.parentChildren[ps]

	counts := make(map[string]int)
	for _, child := range children {
		if child.Category != "" {
			counts[child.Category]++
		}
	}
	var category string
	bestCount := 0
	for cat, n := range counts {
		if n > bestCount || (n == bestCount && cat < category) {
			category = cat
			bestCount = n
		}
	}

	name := titleCase(strings.ReplaceAll(ps, "-", " "))
	for _, child := range children {
		base := baseName(child.Name)
		if normalize(base) == normalize(strings.ReplaceAll(ps, "-", " ")) {
			name = base
			break
		}
	}

	refChildren := make([]model.ChildProtocol, 0, len(children))
	for _, child := range children {
		refChildren = append(refChildren, model.ChildProtocol{Name: child.Name, Slug: child.Slug})
	}
	sort.Slice(refChildren, func(i, j int) bool { return refChildren[i].Name < refChildren[j].Name })

	return model.ProtocolRef{
		Query:      query,
		Slug:       ps,
		Name:       name,
		Category:   category,
		Confidence: confidence,
		MatchKind:  kind,
		IsParent:   true,
		Children:   refChildren,
	}
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
