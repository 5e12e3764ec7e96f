package types

import "encoding/json"

// DetailKind discriminates the shapes the backend uses for the `detail`
// field of error bodies.
type DetailKind int

const (
	// DetailNone means no detail was present.
	DetailNone DetailKind = iota

	// DetailString is a bare human-readable string.
	DetailString

	// DetailFieldErrors is a validation error list of {type, loc, msg, input}
	// entries (FastAPI style). The first entry's msg is surfaced.
	DetailFieldErrors

	// DetailObject is a single object carrying a msg field.
	DetailObject

	// DetailOpaque is anything else; Text holds its raw JSON.
	DetailOpaque
)

// FieldError is one entry of a structured validation error list.
type FieldError struct {
	Type  string          `json:"type"`
	Loc   []any           `json:"loc"`
	Msg   string          `json:"msg"`
	Input json.RawMessage `json:"input"`
}

// Detail is the normalized form of an error body's detail field: one
// human-readable string plus the structured original.
type Detail struct {
	Kind   DetailKind
	Text   string
	Fields []FieldError
	Raw    json.RawMessage
}

// NormalizeDetail flattens the backend's duck-typed detail shapes
// (string | field-error list | object with msg) into a Detail. The raw JSON
// is preserved for callers needing per-field errors.
func NormalizeDetail(raw json.RawMessage) Detail {
	if len(raw) == 0 || string(raw) == "null" {
		return Detail{Kind: DetailNone}
	}

	d := Detail{Raw: raw}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		d.Kind = DetailString
		d.Text = s
		return d
	}

	var fields []FieldError
	if err := json.Unmarshal(raw, &fields); err == nil && len(fields) > 0 {
		d.Kind = DetailFieldErrors
		d.Fields = fields
		if fields[0].Msg != "" {
			d.Text = fields[0].Msg
		} else {
			first, _ := json.Marshal(fields[0])
			d.Text = string(first)
		}
		return d
	}

	var obj struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Msg != "" {
		d.Kind = DetailObject
		d.Text = obj.Msg
		return d
	}

	d.Kind = DetailOpaque
	d.Text = string(raw)
	return d
}

// ExtractDetail returns the detail field of an error body, or the body
// itself when no detail key is present.
func ExtractDetail(body json.RawMessage) json.RawMessage {
	var parsed struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Detail) > 0 {
		return parsed.Detail
	}
	return body
}

// ErrorMessage extracts the most specific human-readable message from an
// error body: detail first, then message, then a generic fallback.
func ErrorMessage(body json.RawMessage) string {
	var parsed struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if d := NormalizeDetail(parsed.Detail); d.Kind != DetailNone && d.Text != "" {
			return d.Text
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	return "Request failed"
}
