// Package fetcher assembles protocol snapshots from the upstream API
// through the cache. Every network call is cache-checked first and
// deduplicated per key, so concurrent report requests for the same
// protocol share a single in-flight fetch.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/defilens/defilens/internal/cache"
	"github.com/defilens/defilens/internal/llama"
	"github.com/defilens/defilens/internal/metrics"
	"github.com/defilens/defilens/internal/model"
)

// API is the slice of the DeFiLlama client the fetcher consumes.
type API interface {
	Protocols(ctx context.Context) ([]llama.ListedProtocol, error)
	ProtocolDetail(ctx context.Context, slug string) (*llama.ProtocolDetail, error)
	Hacks(ctx context.Context) ([]llama.HackRecord, error)
}

// TTLConfig sets per-endpoint-kind cache lifetimes. TVL detail moves
// daily; the hacks feed and catalog rarely change.
type TTLConfig struct {
	Detail  time.Duration
	Hacks   time.Duration
	Catalog time.Duration
}

// DefaultTTLs returns the documented cache defaults.
func DefaultTTLs() TTLConfig {
	return TTLConfig{
		Detail:  15 * time.Minute,
		Hacks:   6 * time.Hour,
		Catalog: 6 * time.Hour,
	}
}

// Fetcher reads protocol data through the cache.
type Fetcher struct {
	api     API
	cache   cache.Cache
	ttl     TTLConfig
	group   singleflight.Group
	metrics *metrics.Metrics
}

// New creates a fetcher. The metrics registry may be nil.
func New(api API, c cache.Cache, ttl TTLConfig, m *metrics.Metrics) *Fetcher {
	if ttl.Detail == 0 {
		ttl = DefaultTTLs()
	}
	return &Fetcher{api: api, cache: c, ttl: ttl, metrics: m}
}

// Protocols returns the cached protocol catalog, fetching on miss.
// The resolver reads its catalog through this method.
func (f *Fetcher) Protocols(ctx context.Context) ([]llama.ListedProtocol, error) {
	payload, _, err := f.cached(ctx, "catalog:protocols", "catalog", f.ttl.Catalog,
		func(ctx context.Context) (any, error) { return f.api.Protocols(ctx) })
	if err != nil {
		return nil, fmt.Errorf("fetching protocol catalog: %w", err)
	}
	var list []llama.ListedProtocol
	if err := json.Unmarshal(payload, &list); err != nil {
		return nil, fmt.Errorf("decoding cached catalog: %w", err)
	}
	return list, nil
}

// Fetch assembles a snapshot for a resolved protocol over a TVL window
// of days (0 means full history). Detail and hacks are fetched
// concurrently; a failing hacks feed degrades the snapshot instead of
// failing it. The returned snapshot's FetchedAt is the fetch time of
// its least-fresh constituent payload.
func (f *Fetcher) Fetch(ctx context.Context, ref model.ProtocolRef, days int) (*model.ProtocolSnapshot, error) {
	if !ref.Found() {
		return nil, fmt.Errorf("fetcher: unresolved protocol %q", ref.Query)
	}
	if days < 0 {
		days = 0
	}

	// The window length is part of the key: a 7-day and a 90-day
	// request for the same slug are independent entries.
	detailKey := fmt.Sprintf("protocol:%s:days=%d", ref.Slug, days)

	var (
		detail   llama.ProtocolDetail
		detailAt time.Time
		hacks    []llama.HackRecord
		hacksAt  time.Time
		hacksOK  bool
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		payload, at, err := f.cached(gctx, detailKey, "detail", f.ttl.Detail,
			func(ctx context.Context) (any, error) { return f.api.ProtocolDetail(ctx, ref.Slug) })
		if err != nil {
			return fmt.Errorf("fetching protocol detail for %s: %w", ref.Slug, err)
		}
		if err := json.Unmarshal(payload, &detail); err != nil {
			return fmt.Errorf("decoding cached detail for %s: %w", ref.Slug, err)
		}
		detailAt = at
		return nil
	})

	g.Go(func() error {
		payload, at, err := f.cached(gctx, "hacks:all", "hacks", f.ttl.Hacks,
			func(ctx context.Context) (any, error) { return f.api.Hacks(ctx) })
		if err != nil {
			log.Warn().Err(err).Msg("hacks feed unavailable, security signal degraded")
			return nil
		}
		if err := json.Unmarshal(payload, &hacks); err != nil {
			log.Warn().Err(err).Msg("hacks feed undecodable, security signal degraded")
			return nil
		}
		hacksAt = at
		hacksOK = true
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return buildSnapshot(ref, days, &detail, detailAt, hacks, hacksAt, hacksOK), nil
}

type flightResult struct {
	payload []byte
	at      time.Time
}

// cached returns the payload for key, loading and storing it on miss.
// At most one load per key is in flight at a time; concurrent callers
// share its result. The load runs detached from the caller's
// cancellation so an abandoned report request still warms the cache
// (the HTTP client's own timeout keeps it bounded).
func (f *Fetcher) cached(ctx context.Context, key, kind string, ttl time.Duration, load func(context.Context) (any, error)) ([]byte, time.Time, error) {
	if e, ok := f.cache.Get(key); ok {
		f.metrics.IncCacheHit(kind)
		return e.Payload, e.FetchedAt, nil
	}
	f.metrics.IncCacheMiss(kind)

	v, err, _ := f.group.Do(key, func() (interface{}, error) {
		// A concurrent flight may have filled the entry between our
		// miss and acquiring the flight.
		if e, ok := f.cache.Get(key); ok {
			return flightResult{payload: e.Payload, at: e.FetchedAt}, nil
		}

		raw, err := load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		payload, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("encoding payload for %s: %w", key, err)
		}

		// The full payload is written as one atomic entry; partial
		// responses are never visible to readers.
		f.cache.Set(key, payload, ttl)
		return flightResult{payload: payload, at: time.Now()}, nil
	})
	if err != nil {
		return nil, time.Time{}, err
	}

	res := v.(flightResult)
	return res.payload, res.at, nil
}
