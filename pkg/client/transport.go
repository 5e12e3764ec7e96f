package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wikiai/kbclient/pkg/types"
)

// bypassHeader is sent on every request so tunneled backends (ngrok) skip
// their interstitial page.
const (
	bypassHeaderName  = "ngrok-skip-browser-warning"
	bypassHeaderValue = "true"
)

// MultipartBody carries a prebuilt multipart form. The body is held as bytes
// so each retry attempt re-sends the full form. The writer's content type
// (with boundary) is used verbatim; the transport never applies the JSON
// content type to it.
type MultipartBody struct {
	Body        []byte
	ContentType string
}

// newTransport builds a pooled http.Transport for the client.
func newTransport() *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
		ForceAttemptHTTP2:     true,
	}
}

// roundTrip performs one bounded attempt and normalizes every failure into
// a classified *types.APIError.
func (c *Client) roundTrip(ctx context.Context, req Request) (*types.Envelope, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := c.buildRequest(attemptCtx, req)
	if err != nil {
		return nil, types.NewUnknownError(err)
	}

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || attemptCtx.Err() == context.DeadlineExceeded {
			return nil, types.NewTimeoutError(timeout.Milliseconds())
		}
		return nil, types.NewNetworkError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if attemptCtx.Err() == context.DeadlineExceeded {
			return nil, types.NewTimeoutError(timeout.Milliseconds())
		}
		return nil, types.NewNetworkError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusText := http.StatusText(resp.StatusCode)
		details := json.RawMessage(body)
		if len(bytes.TrimSpace(body)) == 0 || !json.Valid(body) {
			details, _ = json.Marshal(map[string]string{"detail": statusText})
		}
		return nil, types.NewAPIError(resp.StatusCode, statusText, details)
	}

	return parseSuccessBody(body)
}

// parseSuccessBody interprets a 2xx body. Enveloped objects parse as-is; a
// few legacy endpoints return bare arrays, non-enveloped objects, or plain
// text, which are wrapped as successes with the original body preserved in
// Raw.
func parseSuccessBody(body []byte) (*types.Envelope, error) {
	trimmed := bytes.TrimSpace(body)

	var env types.Envelope
	switch {
	case len(trimmed) > 0 && trimmed[0] == '{':
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, types.NewUnknownError(fmt.Errorf("parse response body: %w", err))
		}
		if env.Status == "" {
			// Non-enveloped object (e.g. reports payloads).
			env = types.Envelope{Status: types.StatusSuccess, Response: trimmed}
		}
	case json.Valid(trimmed):
		// Bare array or scalar (e.g. the accounts listing).
		env = types.Envelope{Status: types.StatusSuccess, Response: trimmed}
	default:
		// Plain text (e.g. file content); carried only in Raw.
		env = types.Envelope{Status: types.StatusSuccess}
	}
	env.Raw = body
	return &env, nil
}

// buildRequest assembles the HTTP request: URL with query params, serialized
// body, and the fixed header set (bypass header, content type, bearer token).
func (c *Client) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	fullURL := c.baseURL + req.URL
	if len(req.Params) > 0 {
		values := url.Values{}
		for k, v := range req.Params {
			values.Set(k, v)
		}
		sep := "?"
		if strings.Contains(fullURL, "?") {
			sep = "&"
		}
		fullURL += sep + values.Encode()
	}

	var bodyReader io.Reader
	contentType := "application/json"
	switch {
	case req.Multipart != nil:
		bodyReader = bytes.NewReader(req.Multipart.Body)
		contentType = req.Multipart.ContentType
	case req.Body != nil:
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set(bypassHeaderName, bypassHeaderValue)
	httpReq.Header.Set("Content-Type", contentType)
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}

	return httpReq, nil
}
