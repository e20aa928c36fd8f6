package resolver

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/defilens/defilens/internal/llama"
	"github.com/defilens/defilens/internal/model"
)

type staticSource struct {
	list []llama.ListedProtocol
	err  error
}

func (s staticSource) Protocols(context.Context) ([]llama.ListedProtocol, error) {
	return s.list, s.err
}

func testCatalog() []llama.ListedProtocol {
	return []llama.ListedProtocol{
		{Slug: "aave-v2", Name: "AAVE V2", Category: "Lending", ParentProtocol: "parent#aave"},
		{Slug: "aave-v3", Name: "AAVE V3", Category: "Lending", ParentProtocol: "parent#aave"},
		{Slug: "lido", Name: "Lido", Category: "Liquid Staking"},
		{Slug: "uniswap-v3", Name: "Uniswap V3", Category: "DEX"},
		{Slug: "curve-dex", Name: "Curve DEX", Category: "DEX"},
	}
}

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	return New(staticSource{list: testCatalog()}, DefaultConfig())
}

func TestResolve_ExactSlug(t *testing.T) {
	r := newTestResolver(t)

	ref := r.Resolve(context.Background(), "lido")
	if ref.MatchKind != model.MatchExact {
		t.Fatalf("expected exact match, got %s", ref.MatchKind)
	}
	if ref.Slug != "lido" || ref.Confidence != 1.0 {
		t.Errorf("unexpected ref: %+v", ref)
	}
}

func TestResolve_ExactNameCaseInsensitive(t *testing.T) {
	r := newTestResolver(t)

	ref := r.Resolve(context.Background(), "  Curve DEX ")
	if ref.MatchKind != model.MatchExact {
		t.Fatalf("expected exact match, got %s", ref.MatchKind)
	}
	if ref.Slug != "curve-dex" {
		t.Errorf("expected curve-dex, got %s", ref.Slug)
	}
}

func TestResolve_ParentAlias(t *testing.T) {
	r := newTestResolver(t)

	ref := r.Resolve(context.Background(), "aave")
	if ref.MatchKind != model.MatchAlias {
		t.Fatalf("expected alias match, got %s", ref.MatchKind)
	}
	if !ref.IsParent {
		t.Error("expected parent protocol")
	}
	if ref.Slug != "aave" {
		t.Errorf("expected parent slug aave, got %s", ref.Slug)
	}
	if len(ref.Children) != 2 {
		t.Errorf("expected 2 children, got %d", len(ref.Children))
	}
	if ref.Category != "Lending" {
		t.Errorf("expected derived category Lending, got %s", ref.Category)
	}
	if ref.Name != "AAVE" {
		t.Errorf("expected derived name AAVE, got %s", ref.Name)
	}
}

func TestResolve_Fuzzy(t *testing.T) {
	r := newTestResolver(t)

	// One transposition away from "uniswap-v3"'s display name.
	ref := r.Resolve(context.Background(), "Uniswap V33")
	if ref.MatchKind != model.MatchFuzzy {
		t.Fatalf("expected fuzzy match, got %s (ref %+v)", ref.MatchKind, ref)
	}
	if ref.Slug != "uniswap-v3" {
		t.Errorf("expected uniswap-v3, got %s", ref.Slug)
	}
	if ref.Confidence < DefaultConfig().SimilarityThreshold || ref.Confidence >= 1.0 {
		t.Errorf("fuzzy confidence %f outside [threshold, 1)", ref.Confidence)
	}
}

func TestResolve_NotFound(t *testing.T) {
	r := newTestResolver(t)

	ref := r.Resolve(context.Background(), "notarealprotocol")
	if ref.MatchKind != model.MatchNotFound {
		t.Fatalf("expected not found, got %s", ref.MatchKind)
	}
	if ref.Confidence != 0 {
		t.Errorf("not-found ref must carry zero confidence, got %f", ref.Confidence)
	}
	if ref.Found() {
		t.Error("Found() must be false for not-found refs")
	}
}

func TestResolve_Suggestions(t *testing.T) {
	r := newTestResolver(t)

	ref := r.Resolve(context.Background(), "lidoo")
	if ref.MatchKind != model.MatchNotFound {
		t.Skipf("query unexpectedly matched: %+v", ref)
	}
	if len(ref.Suggestions) == 0 {
		t.Error("expected suggestions for a near-miss query")
	}
}

func TestResolve_CatalogUnavailableFailsSoft(t *testing.T) {
	r := New(staticSource{err: errors.New("upstream down")}, DefaultConfig())

	ref := r.Resolve(context.Background(), "aave")
	if ref.MatchKind != model.MatchNotFound || ref.Confidence != 0 {
		t.Errorf("catalog failure must yield NotFound with zero confidence, got %+v", ref)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	r := newTestResolver(t)

	for _, query := range []string{"aave", "lido", "Uniswap V33", "notarealprotocol", "AAVE V2"} {
		first := r.Resolve(context.Background(), query)
		second := r.Resolve(context.Background(), query)
		if !reflect.DeepEqual(first, second) {
			t.Errorf("resolution of %q is not deterministic:\n%+v\n%+v", query, first, second)
		}
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"  AAVE  ", "aave"},
		{"Uniswap  V3", "uniswap v3"},
		{"curve!?", "curve"},
		{"curve-dex", "curve-dex"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := normalize(tc.in); got != tc.want {
			t.Errorf("normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	if s := similarity("aave", "aave"); s != 1.0 {
		t.Errorf("identical strings must score 1.0, got %f", s)
	}
	if s := similarity("aave", ""); s != 0 {
		t.Errorf("empty comparand must score 0, got %f", s)
	}
	if a, b := similarity("uniswap", "uniswap"), similarity("uniswap", "xxxxxxx"); a <= b {
		t.Errorf("near match (%f) must outscore unrelated (%f)", a, b)
	}
}
