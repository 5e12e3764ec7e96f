// Package client implements the resilient HTTP client at the core of the
// SDK. A request flows through four stages: response cache, in-flight
// deduplication, bounded exponential-backoff retry, and the HTTP transport.
// Every HTTP failure is normalized into an error-status envelope; Do returns
// a Go error only on caller cancellation or after Close.
package client

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/wikiai/kbclient/pkg/types"
)

// ErrClientClosed is returned by Do after Close.
var ErrClientClosed = errors.New("client: closed")

// Request describes one API call.
type Request struct {
	// URL is the endpoint path, appended to the client's base URL.
	URL string

	// Method is the HTTP method; empty means GET.
	Method string

	// Body is JSON-serialized unless Multipart is set.
	Body any

	// Multipart, when set, is sent verbatim with its own content type.
	Multipart *MultipartBody

	// Params are appended to the URL as query parameters.
	Params map[string]string

	// Token, when set, is sent as a bearer Authorization header.
	Token string

	// Cache enables response caching for this request.
	Cache bool

	// CacheTTL overrides the client's default cache TTL.
	CacheTTL time.Duration

	// NoRetry disables the retry loop; the request fails on first error.
	NoRetry bool

	// Timeout overrides the client's per-attempt timeout.
	Timeout time.Duration

	// DedupKey overrides the METHOD:URL deduplication key. The default key
	// ignores the request body, so concurrent calls to the same URL with
	// different bodies share one execution; set DedupKey to disambiguate.
	DedupKey string
}

func (r Request) cacheKey() string {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	return method + ":" + r.URL
}

func (r Request) dedupKey() string {
	if r.DedupKey != "" {
		return r.DedupKey
	}
	return r.cacheKey()
}

// Config configures a Client. Zero values fall back to defaults.
type Config struct {
	// BaseURL is the backend's HTTP base URL. Required.
	BaseURL string

	// Timeout bounds each HTTP attempt. Default 30s.
	Timeout time.Duration

	// Retry tunes the backoff loop. Zero fields use the defaults
	// (3 attempts, 1s/2s delays).
	Retry RetryPolicy

	// CacheTTL is the default cache entry lifetime. Default 5 minutes.
	CacheTTL time.Duration

	// SweepInterval is how often expired cache entries are collected.
	// Default 1 minute.
	SweepInterval time.Duration

	// Headers are sent on every request in addition to the fixed set.
	Headers map[string]string

	// RateLimitRPM enables a client-side request limiter when positive.
	RateLimitRPM int

	// RateLimitBurst is the limiter burst size. Default 1.
	RateLimitBurst int

	// Logger receives diagnostic events. Default: disabled.
	Logger zerolog.Logger

	// HTTPClient overrides the pooled default, mainly for tests.
	HTTPClient *http.Client
}

// Client is the resilient API client façade.
type Client struct {
	baseURL    string
	httpc      *http.Client
	timeout    time.Duration
	policy     RetryPolicy
	defaultTTL time.Duration
	headers    map[string]string
	limiter    *rate.Limiter
	log        zerolog.Logger

	cache *responseCache
	group singleflight.Group

	// loading counts in-flight executions per METHOD:URL. A DedupKey
	// override allows more than one execution for the same key.
	loadingMu sync.RWMutex
	loading   map[string]int

	metrics   clientMetrics
	closeOnce sync.Once
	closed    atomic.Bool
}

// New creates a Client and starts its cache sweeper. Callers must Close the
// client to stop the sweeper.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Transport: newTransport()}
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPM > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RateLimitRPM)), burst)
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		httpc:      cfg.HTTPClient,
		timeout:    cfg.Timeout,
		policy:     cfg.Retry.applyDefaults(),
		defaultTTL: cfg.CacheTTL,
		headers:    cfg.Headers,
		limiter:    limiter,
		log:        cfg.Logger,
		cache:      newResponseCache(cfg.SweepInterval, cfg.Logger),
		loading:    make(map[string]int),
	}
}

// Do executes a request through the cache → dedup → retry → transport
// pipeline. HTTP failures resolve to an error-status envelope; the error
// return is non-nil only for caller cancellation or a closed client.
func (c *Client) Do(ctx context.Context, req Request) (*types.Envelope, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}

	key := req.cacheKey()
	c.metrics.total.Add(1)

	if req.Cache {
		if data, ok := c.cache.lookup(key); ok {
			c.log.Debug().Str("key", key).Msg("cache hit")
			c.metrics.cacheHits.Add(1)
			return types.SuccessEnvelope(data), nil
		}
	}

	v, err, shared := c.group.Do(req.dedupKey(), func() (any, error) {
		c.beginLoading(key)
		defer c.endLoading(key)

		env, err := c.doWithRetry(ctx, req)
		if err != nil {
			return nil, err
		}

		if req.Cache && env.OK() && len(env.Response) > 0 {
			ttl := req.CacheTTL
			if ttl <= 0 {
				ttl = c.defaultTTL
			}
			c.cache.store(key, env.Response, ttl)
			c.log.Debug().Str("key", key).Dur("ttl", ttl).Msg("cached response")
		}
		return env, nil
	})
	if shared {
		c.log.Debug().Str("key", req.dedupKey()).Msg("reusing in-flight request")
		c.metrics.dedupHits.Add(1)
	}
	if err != nil {
		c.metrics.failed.Add(1)
		return nil, err
	}

	env := v.(*types.Envelope)
	if shared {
		// Callers that joined an in-flight execution get their own copy so
		// reassigning envelope fields cannot affect siblings.
		clone := *env
		env = &clone
	}
	if env.OK() {
		c.metrics.succeeded.Add(1)
	} else {
		c.metrics.failed.Add(1)
	}
	return env, nil
}

// IsLoading reports whether a request for the given method and URL is
// currently in flight.
func (c *Client) IsLoading(method, url string) bool {
	c.loadingMu.RLock()
	defer c.loadingMu.RUnlock()
	return c.loading[method+":"+url] > 0
}

func (c *Client) beginLoading(key string) {
	c.loadingMu.Lock()
	defer c.loadingMu.Unlock()
	c.loading[key]++
}

func (c *Client) endLoading(key string) {
	c.loadingMu.Lock()
	defer c.loadingMu.Unlock()
	if c.loading[key] <= 1 {
		delete(c.loading, key)
	} else {
		c.loading[key]--
	}
}

// ClearCache removes cache entries whose key contains pattern; an empty
// pattern clears everything.
func (c *Client) ClearCache(pattern string) {
	c.cache.clear(pattern)
}

// CacheStats returns the current cache size and keys.
func (c *Client) CacheStats() CacheStats {
	return c.cache.stats()
}

// Metrics returns a snapshot of the client's counters.
func (c *Client) Metrics() Metrics {
	return c.metrics.snapshot()
}

// Close stops the cache sweeper and rejects further requests. Safe to call
// more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.cache.close()

		c.loadingMu.Lock()
		c.loading = make(map[string]int)
		c.loadingMu.Unlock()
	})
}

// Metrics is a point-in-time view of client activity.
type Metrics struct {
	TotalRequests      int64
	SuccessfulRequests int64
	FailedRequests     int64
	RetryCount         int64
	CacheHits          int64
	DedupHits          int64
}

type clientMetrics struct {
	total     atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	retries   atomic.Int64
	cacheHits atomic.Int64
	dedupHits atomic.Int64
}

func (m *clientMetrics) snapshot() Metrics {
	return Metrics{
		TotalRequests:      m.total.Load(),
		SuccessfulRequests: m.succeeded.Load(),
		FailedRequests:     m.failed.Load(),
		RetryCount:         m.retries.Load(),
		CacheHits:          m.cacheHits.Load(),
		DedupHits:          m.dedupHits.Load(),
	}
}
