package llama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/defilens/defilens/internal/metrics"
)

// Config controls the HTTP behavior of the DeFiLlama client.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	RateLimit   float64 // requests per second, conservative for the free tier
	Burst       int
	MaxRetries  int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	UserAgent   string
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.llama.fi"
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RateLimit == 0 {
		c.RateLimit = 3.0
	}
	if c.Burst == 0 {
		c.Burst = 3
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.BackoffBase == 0 {
		c.BackoffBase = 500 * time.Millisecond
	}
	if c.BackoffMax == 0 {
		c.BackoffMax = 15 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "DefiLens/1.0 (due-diligence)"
	}
	return c
}

// Client is a rate-limited, circuit-broken HTTP client for the
// DeFiLlama API. Transient failures are retried with exponential
// backoff; permanent failures surface immediately as typed errors.
type Client struct {
	cfg     Config
	httpc   *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	metrics *metrics.Metrics
}

// New creates a client. The metrics registry may be nil.
func New(cfg Config, m *metrics.Metrics) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg:     cfg,
		httpc:   &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "defillama",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// Permanent errors (404, schema) say nothing about
			// upstream health and must not trip the breaker.
			IsSuccessful: func(err error) bool {
				return err == nil || !isTransient(err)
			},
		}),
		metrics: m,
	}
}

// Protocols fetches the full protocol catalog.
func (c *Client) Protocols(ctx context.Context) ([]ListedProtocol, error) {
	var out []ListedProtocol
	if err := c.get(ctx, "/protocols", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ProtocolDetail fetches the full detail payload for a slug.
func (c *Client) ProtocolDetail(ctx context.Context, slug string) (*ProtocolDetail, error) {
	var out ProtocolDetail
	if err := c.get(ctx, "/protocol/"+url.PathEscape(slug), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Hacks fetches the global hack/incident feed.
func (c *Client) Hacks(ctx context.Context) ([]HackRecord, error) {
	var out []HackRecord
	if err := c.get(ctx, "/hacks", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("llama: rate limiter: %w", err)
	}

	body, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doWithRetry(ctx, path)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("llama: circuit open for %s: %w", path, ErrUnavailable)
	}
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body.([]byte), out); err != nil {
		return fmt.Errorf("llama: decoding %s: %w", path, err)
	}
	return nil
}

func (c *Client) doWithRetry(ctx context.Context, path string) ([]byte, error) {
	reqURL := c.cfg.BaseURL + path

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.backoff(attempt, lastErr)
			log.Debug().
				Str("url", reqURL).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("retrying upstream request")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("llama: building request: %w", err)
		}
		req.Header.Set("User-Agent", c.cfg.UserAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.metrics.ObserveUpstream(path, "network_error")
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			if readErr != nil {
				c.metrics.ObserveUpstream(path, "read_error")
				lastErr = readErr
				continue
			}
			c.metrics.ObserveUpstream(path, "ok")
			return body, nil

		case resp.StatusCode == http.StatusTooManyRequests:
			c.metrics.ObserveUpstream(path, "rate_limited")
			lastErr = &APIError{Status: resp.StatusCode, URL: reqURL, Retryable: true}
			continue

		case resp.StatusCode >= 500:
			c.metrics.ObserveUpstream(path, "server_error")
			lastErr = &APIError{Status: resp.StatusCode, URL: reqURL, Retryable: true}
			continue

		default:
			// 404 and remaining 4xx are permanent, never retried.
			c.metrics.ObserveUpstream(path, "client_error")
			return nil, &APIError{
				Status:    resp.StatusCode,
				URL:       reqURL,
				Body:      truncate(body, 200),
				Retryable: false,
			}
		}
	}

	return nil, fmt.Errorf("llama: GET %s exhausted %d retries (last: %v): %w",
		reqURL, c.cfg.MaxRetries, lastErr, ErrUnavailable)
}

// backoff grows exponentially from the base, capped at the max tier.
// Rate-limit responses always wait the full max tier. Up to 10% jitter
// is added to avoid synchronized retries.
func (c *Client) backoff(attempt int, lastErr error) time.Duration {
	d := c.cfg.BackoffBase * time.Duration(1<<uint(attempt-1))

	var apiErr *APIError
	if errors.As(lastErr, &apiErr) && apiErr.Status == http.StatusTooManyRequests {
		d = c.cfg.BackoffMax
	}
	if d > c.cfg.BackoffMax {
		d = c.cfg.BackoffMax
	}

	jitter := time.Duration(rand.Float64() * 0.1 * float64(d))
	return d + jitter
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
