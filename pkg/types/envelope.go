// Package types defines the wire types shared by the kbclient packages:
// the uniform response envelope every backend endpoint conforms to, the
// classified APIError used by the retry machinery, and the realtime query
// protocol messages.
package types

import (
	"encoding/json"
	"fmt"
)

// Status is the discriminator carried by every response envelope.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Envelope is the uniform response shape every backend endpoint returns.
// Both success and failure paths of client.Do produce an Envelope; callers
// branch on Status rather than on a Go error.
type Envelope struct {
	Status   Status          `json:"status"`
	Message  string          `json:"message,omitempty"`
	Response json.RawMessage `json:"response,omitempty"`
	Detail   json.RawMessage `json:"detail,omitempty"`

	// Raw is the unparsed response body. A few legacy endpoints (login,
	// reports, accounts) return shapes outside the envelope contract; their
	// services decode Raw directly.
	Raw json.RawMessage `json:"-"`
}

// OK reports whether the envelope carries a successful response.
func (e *Envelope) OK() bool {
	return e != nil && e.Status == StatusSuccess
}

// Err converts an error-status envelope into a Go error for callers that
// prefer the error idiom over branching on Status. Returns nil for success.
func (e *Envelope) Err() error {
	if e.OK() {
		return nil
	}
	if e == nil {
		return fmt.Errorf("nil response envelope")
	}
	return &EnvelopeError{Message: e.Message, Detail: NormalizeDetail(e.Detail)}
}

// EnvelopeError is the error form of an error-status envelope.
type EnvelopeError struct {
	Message string
	Detail  Detail
}

func (e *EnvelopeError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Detail.Text != "" {
		return e.Detail.Text
	}
	return "request failed"
}

// ErrorEnvelope builds an error-status envelope from a message and optional
// structured detail.
func ErrorEnvelope(message string, detail json.RawMessage) *Envelope {
	return &Envelope{Status: StatusError, Message: message, Detail: detail}
}

// SuccessEnvelope builds a success envelope around an already-encoded payload.
// Used by the cache layer when replaying a stored response.
func SuccessEnvelope(response json.RawMessage) *Envelope {
	return &Envelope{Status: StatusSuccess, Response: response}
}

// Decode unmarshals the envelope's response payload into T. An error-status
// envelope decodes to the envelope's error instead.
func Decode[T any](env *Envelope) (*T, error) {
	if err := env.Err(); err != nil {
		return nil, err
	}
	var out T
	if len(env.Response) == 0 {
		return &out, nil
	}
	if err := json.Unmarshal(env.Response, &out); err != nil {
		return nil, fmt.Errorf("decode response payload: %w", err)
	}
	return &out, nil
}

// DecodeBody unmarshals the raw response body into T, bypassing the
// envelope. Used for legacy endpoints whose bodies do not follow the
// envelope contract.
func DecodeBody[T any](env *Envelope) (*T, error) {
	if env == nil || len(env.Raw) == 0 {
		return nil, fmt.Errorf("empty response body")
	}
	var out T
	if err := json.Unmarshal(env.Raw, &out); err != nil {
		return nil, fmt.Errorf("decode response body: %w", err)
	}
	return &out, nil
}
