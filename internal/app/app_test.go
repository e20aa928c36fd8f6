package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defilens/defilens/internal/config"
	"github.com/defilens/defilens/internal/model"
)

// upstream is a canned llama.fi double tracking per-endpoint hit
// counts.
type upstream struct {
	protocolCalls int32
	hackCalls     int32
	detailCalls   int32

	srv *httptest.Server
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{}

	now := time.Now().Unix()
	mux := http.NewServeMux()
	mux.HandleFunc("/protocols", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&u.protocolCalls, 1)
		writeBody(w, []map[string]any{
			{"slug": "aave-v3", "name": "AAVE V3", "category": "Lending", "parentProtocol": "parent#aave", "tvl": 11e9},
			{"slug": "aave-v2", "name": "AAVE V2", "category": "Lending", "parentProtocol": "parent#aave", "tvl": 1.4e9},
			{"slug": "lido", "name": "Lido", "category": "Liquid Staking", "tvl": 25e9},
			{"slug": "uniswap-v3", "name": "Uniswap V3", "category": "Dexes", "tvl": 3e9},
		})
	})
	mux.HandleFunc("/protocol/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&u.detailCalls, 1)
		slug := r.URL.Path[len("/protocol/"):]

		var tvl []map[string]any
		for i := 40; i > 0; i-- {
			tvl = append(tvl, map[string]any{
				"date":              now - int64(i)*86400,
				"totalLiquidityUSD": 10e9 + float64(40-i)*50e6,
			})
		}
		writeBody(w, map[string]any{
			"name":     slug,
			"category": "Lending",
			"tvl":      tvl,
			"currentChainTvls": map[string]float64{
				"Ethereum":  8e9,
				"Polygon":   2e9,
				"Avalanche": 1e9,
			},
			"raises": []map[string]any{
				{"date": now - 4*365*86400, "round": "Series B", "amount": 25, "leadInvestors": []string{"Framework Ventures"}},
			},
		})
	})
	mux.HandleFunc("/hacks", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&u.hackCalls, 1)
		writeBody(w, []map[string]any{
			{"date": now - 5*365*86400, "name": "SomeOtherProtocol", "classification": "Protocol Logic", "amount": 90e6},
		})
	})

	u.srv = httptest.NewServer(mux)
	t.Cleanup(u.srv.Close)
	return u
}

func writeBody(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func newTestApp(t *testing.T, baseURL string) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Client.BaseURL = baseURL
	cfg.Client.RateLimitRPS = 1000
	cfg.Client.Burst = 100
	cfg.Client.BackoffBaseMS = 1
	cfg.Client.BackoffMaxMS = 5

	a, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestReport_EndToEnd(t *testing.T) {
	u := newUpstream(t)
	a := newTestApp(t, u.srv.URL)

	rep, err := a.Report(context.Background(), "lido", 0)
	require.NoError(t, err)

	assert.Equal(t, "lido", rep.Metadata.Slug)
	assert.Equal(t, string(model.MatchExact), rep.Metadata.MatchKind)
	assert.Len(t, rep.TVL.History, 30, "zero days selects the configured default window")
	assert.ElementsMatch(t, []string{"Ethereum", "Polygon", "Avalanche"}, rep.Chains.Deployed)
	assert.Equal(t, 25e6, rep.Funding.TotalRaisedUSD, "upstream raise amounts are in millions")
	assert.True(t, rep.Security.IncidentDataAvailable)
	assert.Zero(t, rep.Security.TotalIncidents, "other protocols' hacks must not leak in")
	assert.NotEmpty(t, rep.Assessment.Verdict)
	assert.GreaterOrEqual(t, rep.Assessment.Overall, 0.0)
	assert.LessOrEqual(t, rep.Assessment.Overall, 10.0)

	var multiChain bool
	for _, p := range rep.Assessment.PositiveSignals {
		if p == fmt.Sprintf("deployed across %d chains with >$100M TVL", 3) {
			multiChain = true
		}
	}
	assert.True(t, multiChain)
}

func TestReport_ParentAlias(t *testing.T) {
	u := newUpstream(t)
	a := newTestApp(t, u.srv.URL)

	rep, err := a.Report(context.Background(), "aave", 30)
	require.NoError(t, err)

	assert.Equal(t, string(model.MatchAlias), rep.Metadata.MatchKind)
	assert.True(t, rep.Metadata.IsParent)
	assert.ElementsMatch(t, []string{"AAVE V2", "AAVE V3"}, rep.Metadata.ChildProtocols)
}

func TestReport_WindowIsolation(t *testing.T) {
	u := newUpstream(t)
	a := newTestApp(t, u.srv.URL)

	seven, err := a.Report(context.Background(), "lido", 7)
	require.NoError(t, err)
	thirty, err := a.Report(context.Background(), "lido", 30)
	require.NoError(t, err)

	assert.Len(t, seven.TVL.History, 7)
	assert.Len(t, thirty.TVL.History, 30)
	assert.EqualValues(t, 2, atomic.LoadInt32(&u.detailCalls), "each window is its own cache entry")
}

func TestReport_CachedSecondRun(t *testing.T) {
	u := newUpstream(t)
	a := newTestApp(t, u.srv.URL)

	_, err := a.Report(context.Background(), "lido", 30)
	require.NoError(t, err)
	_, err = a.Report(context.Background(), "lido", 30)
	require.NoError(t, err)

	assert.EqualValues(t, 1, atomic.LoadInt32(&u.detailCalls))
	assert.EqualValues(t, 1, atomic.LoadInt32(&u.hackCalls))
	assert.EqualValues(t, 1, atomic.LoadInt32(&u.protocolCalls))
}

func TestReport_FuzzyQuery(t *testing.T) {
	u := newUpstream(t)
	a := newTestApp(t, u.srv.URL)

	rep, err := a.Report(context.Background(), "Uniswap V33", 30)
	require.NoError(t, err)

	assert.Equal(t, "uniswap-v3", rep.Metadata.Slug)
	assert.Equal(t, string(model.MatchFuzzy), rep.Metadata.MatchKind)
	assert.Less(t, rep.Metadata.Confidence, 1.0)
}

func TestReport_UnknownProtocol(t *testing.T) {
	u := newUpstream(t)
	a := newTestApp(t, u.srv.URL)

	_, err := a.Report(context.Background(), "notarealprotocol", 30)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "notarealprotocol", nf.Query)
	assert.Zero(t, atomic.LoadInt32(&u.detailCalls), "unknown queries must not trigger detail fetches")
	assert.Zero(t, atomic.LoadInt32(&u.hackCalls))
}

func TestReport_MisspelledSuggestions(t *testing.T) {
	u := newUpstream(t)
	a := newTestApp(t, u.srv.URL)

	_, err := a.Report(context.Background(), "lidoo", 30)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Contains(t, nf.Suggestions, "Lido")
	assert.Contains(t, nf.Error(), "did you mean")
}

func TestReport_UpstreamDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	a := newTestApp(t, srv.URL)
	_, err := a.Report(context.Background(), "lido", 30)

	// The catalog fetch fails first, so resolution degrades to not
	// found rather than surfacing a transport error.
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestReport_DetailUnavailable(t *testing.T) {
	u := newUpstream(t)
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/protocols" {
			rec := httptest.NewRecorder()
			u.srv.Config.Handler.ServeHTTP(rec, r)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(rec.Body.Bytes())
			return
		}
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	t.Cleanup(failing.Close)

	a := newTestApp(t, failing.URL)
	_, err := a.Report(context.Background(), "lido", 30)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable), "exhausted retries surface as unavailability: %v", err)
}

func TestRefreshCatalog(t *testing.T) {
	u := newUpstream(t)
	a := newTestApp(t, u.srv.URL)

	require.NoError(t, a.RefreshCatalog(context.Background()))
	_, err := a.Report(context.Background(), "lido", 30)
	require.NoError(t, err)

	assert.EqualValues(t, 1, atomic.LoadInt32(&u.protocolCalls), "resolution reuses the pre-warmed catalog")
}
