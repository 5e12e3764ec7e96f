package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wikiai/kbclient/pkg/types"
)

func newTestClient(t *testing.T, serverURL string, mutate func(*Config)) *Client {
	t.Helper()
	cfg := Config{
		BaseURL: serverURL,
		Retry: RetryPolicy{
			MaxAttempts:  3,
			InitialDelay: 5 * time.Millisecond,
			MaxDelay:     50 * time.Millisecond,
			Multiplier:   2.0,
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c := New(cfg)
	t.Cleanup(c.Close)
	return c
}

func successHandler(payload string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"success","response":%s}`, payload)
	}
}

func TestDoSuccess(t *testing.T) {
	server := httptest.NewServer(successHandler(`{"value":42}`))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)

	env, err := c.Do(context.Background(), Request{URL: "/thing"})
	require.NoError(t, err)
	assert.True(t, env.OK())
	assert.JSONEq(t, `{"value":42}`, string(env.Response))
}

func TestDoSendsFixedHeaders(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		successHandler(`{}`)(w, r)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, func(cfg *Config) {
		cfg.Headers = map[string]string{"X-Client": "kbclient"}
	})

	_, err := c.Do(context.Background(), Request{URL: "/thing", Token: "tok123"})
	require.NoError(t, err)

	assert.Equal(t, "true", got.Get("ngrok-skip-browser-warning"))
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, "Bearer tok123", got.Get("Authorization"))
	assert.Equal(t, "kbclient", got.Get("X-Client"))
}

func TestDoQueryParams(t *testing.T) {
	var gotURL string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.URL.String()
		successHandler(`{}`)(w, r)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)

	_, err := c.Do(context.Background(), Request{
		URL:    "/search",
		Params: map[string]string{"query": "red shoes"},
	})
	require.NoError(t, err)
	assert.Equal(t, "/search?query=red+shoes", gotURL)
}

func TestDoMultipartKeepsFormContentType(t *testing.T) {
	var gotContentType string
	var gotFilename string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		if err := r.ParseMultipartForm(1 << 20); err == nil {
			if _, header, err := r.FormFile("file"); err == nil {
				gotFilename = header.Filename
			}
		}
		successHandler(`{}`)(w, r)
	}))
	defer server.Close()

	var buf strings.Builder
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	c := newTestClient(t, server.URL, nil)

	_, err = c.Do(context.Background(), Request{
		URL:    "/upload",
		Method: http.MethodPost,
		Multipart: &MultipartBody{
			Body:        []byte(buf.String()),
			ContentType: writer.FormDataContentType(),
		},
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(gotContentType, "multipart/form-data"),
		"content type %q should keep the form boundary", gotContentType)
	assert.Equal(t, "notes.txt", gotFilename)
}

func TestDoMultipartRetryResendsFullBody(t *testing.T) {
	var mu sync.Mutex
	var bodies [][]byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		mu.Lock()
		bodies = append(bodies, body)
		attempt := len(bodies)
		mu.Unlock()

		if attempt == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		successHandler(`{}`)(w, r)
	}))
	defer server.Close()

	var buf strings.Builder
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("important content"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	c := newTestClient(t, server.URL, nil)

	env, err := c.Do(context.Background(), Request{
		URL:    "/upload",
		Method: http.MethodPost,
		Multipart: &MultipartBody{
			Body:        []byte(buf.String()),
			ContentType: writer.FormDataContentType(),
		},
	})
	require.NoError(t, err)
	assert.True(t, env.OK())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 2)
	assert.NotEmpty(t, bodies[1], "retried attempt must carry the form body")
	assert.Equal(t, bodies[0], bodies[1], "every attempt must send the identical form")
}

func TestDoErrorStatusFoldsIntoEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"detail":"catalog name required"}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)

	env, err := c.Do(context.Background(), Request{URL: "/catalogs/create", Method: http.MethodPost})
	require.NoError(t, err, "HTTP failures must not surface as Go errors")
	assert.False(t, env.OK())
	assert.Equal(t, "API Error 422: Unprocessable Entity", env.Message)
	assert.JSONEq(t, `"catalog name required"`, string(env.Detail))
}

func TestDoRetriesUpToMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)

	env, err := c.Do(context.Background(), Request{URL: "/flaky"})
	require.NoError(t, err)
	assert.False(t, env.OK())
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, int64(2), c.Metrics().RetryCount)
}

func TestDoRetrySucceedsAfterTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		successHandler(`{"ok":true}`)(w, r)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)

	env, err := c.Do(context.Background(), Request{URL: "/flaky"})
	require.NoError(t, err)
	assert.True(t, env.OK())
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoFailsFastOnNonRetryableStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"detail":"bad input"}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)

	env, err := c.Do(context.Background(), Request{URL: "/validate", Method: http.MethodPost})
	require.NoError(t, err)
	assert.False(t, env.OK())
	assert.Equal(t, int32(1), calls.Load(), "validation errors must not be retried")
}

func TestDoNoRetryOptOut(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)

	env, err := c.Do(context.Background(), Request{URL: "/login", Method: http.MethodPost, NoRetry: true})
	require.NoError(t, err)
	assert.False(t, env.OK())
	assert.Equal(t, int32(1), calls.Load())
}

func TestDoTimeoutBecomes408Envelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		successHandler(`{}`)(w, r)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)

	env, err := c.Do(context.Background(), Request{
		URL:     "/slow",
		Timeout: 30 * time.Millisecond,
		NoRetry: true,
	})
	require.NoError(t, err)
	assert.False(t, env.OK())
	assert.Equal(t, "API Error 408: Request Timeout", env.Message)
}

func TestDoConnectionRefusedBecomesNetworkEnvelope(t *testing.T) {
	// Grab a port nobody is listening on.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	c := newTestClient(t, addr, nil)

	env, err := c.Do(context.Background(), Request{URL: "/anything", NoRetry: true})
	require.NoError(t, err)
	assert.False(t, env.OK())
	assert.Contains(t, env.Message, "API Error 0")
}

func TestDoCallerCancellationPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, func(cfg *Config) {
		cfg.Retry.InitialDelay = time.Second
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, err := c.Do(ctx, Request{URL: "/flaky"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestDoCacheHitSkipsNetwork(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		successHandler(fmt.Sprintf(`{"call":%d}`, calls.Load()))(w, r)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)

	first, err := c.Do(context.Background(), Request{URL: "/docs", Cache: true})
	require.NoError(t, err)
	second, err := c.Do(context.Background(), Request{URL: "/docs", Cache: true})
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.JSONEq(t, string(first.Response), string(second.Response))
	assert.Equal(t, int64(1), c.Metrics().CacheHits)
}

func TestDoCacheExpiryRefetches(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		successHandler(`{}`)(w, r)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)

	req := Request{URL: "/docs", Cache: true, CacheTTL: 20 * time.Millisecond}

	_, err := c.Do(context.Background(), req)
	require.NoError(t, err)
	time.Sleep(40 * time.Millisecond)
	_, err = c.Do(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
}

func TestDoErrorResponsesAreNotCached(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, func(cfg *Config) {
		cfg.Retry.MaxAttempts = 1
	})

	for i := 0; i < 2; i++ {
		env, err := c.Do(context.Background(), Request{URL: "/docs", Cache: true})
		require.NoError(t, err)
		assert.False(t, env.OK())
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestClearCachePattern(t *testing.T) {
	server := httptest.NewServer(successHandler(`{}`))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)

	for _, url := range []string{"/documents", "/catalogs", "/documents/content"} {
		_, err := c.Do(context.Background(), Request{URL: url, Cache: true})
		require.NoError(t, err)
	}
	require.Equal(t, 3, c.CacheStats().Size)

	c.ClearCache("/documents")
	stats := c.CacheStats()
	assert.Equal(t, 1, stats.Size)
	assert.Contains(t, stats.Keys, "GET:/catalogs")

	c.ClearCache("")
	assert.Equal(t, 0, c.CacheStats().Size)
}

func TestDoDeduplicatesConcurrentRequests(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(150 * time.Millisecond)
		successHandler(`{"shared":true}`)(w, r)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)

	const workers = 5
	var wg sync.WaitGroup
	results := make([]*types.Envelope, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Do(context.Background(), Request{URL: "/shared"})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "concurrent identical requests should share one execution")
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.JSONEq(t, `{"shared":true}`, string(results[i].Response))
	}
	assert.Positive(t, c.Metrics().DedupHits)
}

func TestDoDedupKeyOverrideSeparatesExecutions(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(100 * time.Millisecond)
		successHandler(`{}`)(w, r)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)

	var wg sync.WaitGroup
	for _, key := range []string{"POST:/query#a", "POST:/query#b"} {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			_, err := c.Do(context.Background(), Request{
				URL:      "/query",
				Method:   http.MethodPost,
				Body:     map[string]string{"q": key},
				DedupKey: key,
			})
			assert.NoError(t, err)
		}(key)
	}
	wg.Wait()

	assert.Equal(t, int32(2), calls.Load())
}

func TestIsLoading(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		successHandler(`{}`)(w, r)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Do(context.Background(), Request{URL: "/slow"})
	}()

	require.Eventually(t, func() bool {
		return c.IsLoading(http.MethodGet, "/slow")
	}, time.Second, 5*time.Millisecond)

	close(release)
	<-done
	assert.False(t, c.IsLoading(http.MethodGet, "/slow"))
}

func TestIsLoadingTracksOverlappingExecutions(t *testing.T) {
	releaseA := make(chan struct{})
	releaseB := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "first") {
			<-releaseA
		} else {
			<-releaseB
		}
		successHandler(`{}`)(w, r)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)

	doneA := make(chan struct{})
	doneB := make(chan struct{})
	go func() {
		defer close(doneA)
		_, _ = c.Do(context.Background(), Request{
			URL: "/job", Method: http.MethodPost,
			Body: map[string]string{"name": "first"}, DedupKey: "POST:/job#a",
		})
	}()
	go func() {
		defer close(doneB)
		_, _ = c.Do(context.Background(), Request{
			URL: "/job", Method: http.MethodPost,
			Body: map[string]string{"name": "second"}, DedupKey: "POST:/job#b",
		})
	}()

	require.Eventually(t, func() bool {
		return c.IsLoading(http.MethodPost, "/job")
	}, time.Second, 5*time.Millisecond)

	close(releaseA)
	<-doneA
	assert.True(t, c.IsLoading(http.MethodPost, "/job"),
		"second execution is still in flight")

	close(releaseB)
	<-doneB
	assert.False(t, c.IsLoading(http.MethodPost, "/job"))
}

func TestDoSharedEnvelopesAreIndependent(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(150 * time.Millisecond)
		successHandler(`{"shared":true}`)(w, r)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)

	const workers = 3
	var wg sync.WaitGroup
	results := make([]*types.Envelope, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = c.Do(context.Background(), Request{URL: "/shared"})
		}(i)
	}
	wg.Wait()
	require.Equal(t, int32(1), calls.Load())

	results[0].Response = nil
	results[0].Status = types.StatusError
	for i := 1; i < workers; i++ {
		assert.True(t, results[i].OK())
		assert.JSONEq(t, `{"shared":true}`, string(results[i].Response))
	}
}

func TestDoAfterCloseFails(t *testing.T) {
	server := httptest.NewServer(successHandler(`{}`))
	defer server.Close()

	c := New(Config{BaseURL: server.URL})
	c.Close()
	c.Close() // idempotent

	_, err := c.Do(context.Background(), Request{URL: "/thing"})
	require.ErrorIs(t, err, ErrClientClosed)
}

func TestDoParsesLegacyBodies(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantResp string
		wantRaw  string
	}{
		{name: "bare array", body: `[{"username":"alice"}]`, wantResp: `[{"username":"alice"}]`},
		{name: "non-enveloped object", body: `{"reports":[]}`, wantResp: `{"reports":[]}`},
		{name: "plain text", body: "line one\nline two", wantRaw: "line one\nline two"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			c := newTestClient(t, server.URL, nil)

			env, err := c.Do(context.Background(), Request{URL: "/legacy"})
			require.NoError(t, err)
			assert.True(t, env.OK())
			if tt.wantResp != "" {
				assert.JSONEq(t, tt.wantResp, string(env.Response))
			}
			if tt.wantRaw != "" {
				assert.Equal(t, tt.wantRaw, string(env.Raw))
			}
		})
	}
}

func TestDoMetricsCounters(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			successHandler(`{}`)(w, r)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"detail":"nope"}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)

	_, err := c.Do(context.Background(), Request{URL: "/a"})
	require.NoError(t, err)
	_, err = c.Do(context.Background(), Request{URL: "/b"})
	require.NoError(t, err)

	m := c.Metrics()
	assert.Equal(t, int64(2), m.TotalRequests)
	assert.Equal(t, int64(1), m.SuccessfulRequests)
	assert.Equal(t, int64(1), m.FailedRequests)
}

func TestDoRateLimiterThrottles(t *testing.T) {
	server := httptest.NewServer(successHandler(`{}`))
	defer server.Close()

	c := newTestClient(t, server.URL, func(cfg *Config) {
		// 600 RPM = one token every 100ms.
		cfg.RateLimitRPM = 600
		cfg.RateLimitBurst = 1
	})

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.Do(context.Background(), Request{URL: fmt.Sprintf("/r%d", i)})
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 180*time.Millisecond)
}

func TestParseSuccessBodyEnvelope(t *testing.T) {
	env, err := parseSuccessBody([]byte(`{"status":"error","message":"broken","detail":"why"}`))
	require.NoError(t, err)
	assert.False(t, env.OK())
	assert.Equal(t, "broken", env.Message)

	var detail string
	require.NoError(t, json.Unmarshal(env.Detail, &detail))
	assert.Equal(t, "why", detail)
}
