package resolver

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/defilens/defilens/internal/llama"
	"github.com/defilens/defilens/internal/model"
)

// CatalogSource provides the protocol catalog. In production this is
// the fetcher, which serves it from cache.
type CatalogSource interface {
	Protocols(ctx context.Context) ([]llama.ListedProtocol, error)
}

// Config holds the matching policy: the minimum similarity for a
// fuzzy match and the looser cutoff for suggestions.
type Config struct {
	SimilarityThreshold float64
	SuggestionCutoff    float64
	MaxSuggestions      int
}

// DefaultConfig returns the documented matching defaults.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: 0.85,
		SuggestionCutoff:    0.4,
		MaxSuggestions:      3,
	}
}

// Resolver maps free-form protocol names to canonical slugs.
type Resolver struct {
	source CatalogSource
	cfg    Config
}

func New(source CatalogSource, cfg Config) *Resolver {
	if cfg.SimilarityThreshold == 0 {
		cfg = DefaultConfig()
	}
	return &Resolver{source: source, cfg: cfg}
}

// Resolve maps query to a ProtocolRef. It never returns an error:
// catalog unavailability and no-match both yield MatchNotFound with
// zero confidence, and the caller decides how to proceed.
//
// Matching order, first hit wins: exact slug, exact display name,
// parent protocol (slug, slug-as-words, or derived base name), fuzzy
// above the similarity threshold.
func (r *Resolver) Resolve(ctx context.Context, query string) model.ProtocolRef {
	notFound := model.ProtocolRef{Query: query, MatchKind: model.MatchNotFound}

	list, err := r.source.Protocols(ctx)
	if err != nil {
		log.Warn().Err(err).Str("query", query).Msg("protocol catalog unavailable")
		return notFound
	}

	q := normalize(query)
	if q == "" {
		return notFound
	}

	cat := buildCatalog(list)

	if p, ok := cat.bySlug[q]; ok {
		return childRef(query, p, model.MatchExact, 1.0)
	}
	if p, ok := cat.byName[q]; ok {
		return childRef(query, p, model.MatchExact, 1.0)
	}
	if ps, ok := cat.parentSlugFor(q); ok {
		return cat.parentRef(query, ps, model.MatchAlias, 1.0)
	}

	if cand, score := cat.closest(q); score >= r.cfg.SimilarityThreshold {
		switch cand.kind {
		case candParent:
			return cat.parentRef(query, cand.slug, model.MatchFuzzy, score)
		default:
			if p, ok := cat.bySlug[normalize(cand.slug)]; ok {
				return childRef(query, p, model.MatchFuzzy, score)
			}
		}
	}

	notFound.Suggestions = cat.suggest(q, r.cfg.SuggestionCutoff, r.cfg.MaxSuggestions)
	return notFound
}
