package types

import (
	"encoding/json"
	"fmt"
)

// APIError is the classified failure produced by the transport layer. It is
// consumed by the retry executor to decide retry eligibility and never
// escapes client.Do: terminal failures are folded into an error-status
// Envelope.
//
// StatusCode 0 means the request never produced an HTTP response (DNS
// failure, connection refused, malformed response body).
type APIError struct {
	StatusCode int
	StatusText string
	Details    json.RawMessage
	Err        error // underlying transport error, if any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API Error %d: %s", e.StatusCode, e.StatusText)
}

// Unwrap returns the underlying transport error for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// IsNetworkError reports a connectivity or server-side failure.
func (e *APIError) IsNetworkError() bool {
	return e.StatusCode >= 500 || e.StatusCode == 0
}

// IsAuthError reports an authentication or authorization failure.
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// IsValidationError reports a malformed-request failure carrying structured
// detail.
func (e *APIError) IsValidationError() bool {
	return e.StatusCode == 422 || e.StatusCode == 400
}

// IsTimeout reports a request that exceeded its per-attempt deadline.
func (e *APIError) IsTimeout() bool {
	return e.StatusCode == 408 || e.StatusText == "Timeout"
}

// IsRetryable reports whether the failure is transient: network/server
// failures, timeouts, and rate limiting are retried; auth and validation
// failures are not.
func (e *APIError) IsRetryable() bool {
	return e.IsNetworkError() || e.IsTimeout() || e.StatusCode == 429
}

// NewAPIError creates a classified error from an HTTP status and the parsed
// error body.
func NewAPIError(statusCode int, statusText string, details json.RawMessage) *APIError {
	return &APIError{StatusCode: statusCode, StatusText: statusText, Details: details}
}

// NewTimeoutError marks an attempt that hit its deadline.
func NewTimeoutError(timeoutMillis int64) *APIError {
	details, _ := json.Marshal(map[string]int64{"timeout": timeoutMillis})
	return &APIError{StatusCode: 408, StatusText: "Request Timeout", Details: details}
}

// NewNetworkError marks a request that never reached the backend.
func NewNetworkError(err error) *APIError {
	details, _ := json.Marshal(map[string]string{"originalError": err.Error()})
	return &APIError{StatusCode: 0, StatusText: "Network Error", Details: details, Err: err}
}

// NewUnknownError wraps a failure the transport could not classify.
func NewUnknownError(err error) *APIError {
	details, _ := json.Marshal(map[string]string{"originalError": err.Error()})
	return &APIError{StatusCode: 0, StatusText: "Unknown Error", Details: details, Err: err}
}
