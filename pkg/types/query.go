package types

import "encoding/json"

// EventType tags a server-pushed realtime query message.
type EventType string

const (
	// EventStatus is an informational progress update; no state change.
	EventStatus EventType = "status"

	// EventImmediate carries the retrieved source files and snippets.
	EventImmediate EventType = "immediate"

	// EventOverview carries the final composed answer text.
	EventOverview EventType = "overview"

	// EventChunks carries raw retrieval chunks (non-humanized mode only).
	EventChunks EventType = "chunks"

	// EventError terminates the conversation with a failure.
	EventError EventType = "error"

	// EventComplete terminates the conversation successfully.
	EventComplete EventType = "complete"
)

// IsTerminal reports whether the event ends the single-shot conversation.
func (t EventType) IsTerminal() bool {
	return t == EventError || t == EventComplete
}

// QueryEvent is one server→client frame of the realtime query protocol.
type QueryEvent struct {
	Type    EventType       `json:"type"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// QueryRequest is the single client→server message sent when the socket
// opens. SessionID and Model serialize as null when unset, matching the
// backend contract.
type QueryRequest struct {
	Question    string  `json:"question"`
	SessionID   *string `json:"session_id"`
	Model       *string `json:"model"`
	Humanize    bool    `json:"humanize"`
	AIAgentMode bool    `json:"ai_agent_mode"`
}

// Snippet is one retrieved source passage.
type Snippet struct {
	Content string `json:"content"`
	Source  string `json:"source"`
}

// SecurityInfo describes the document filtering applied to a query.
type SecurityInfo struct {
	UserFiltered         bool   `json:"user_filtered"`
	Username             string `json:"username"`
	SourceDocumentsCount int    `json:"source_documents_count"`
	SecurityFiltered     bool   `json:"security_filtered"`
}

// ImmediateResult is the payload of an EventImmediate frame.
type ImmediateResult struct {
	Files        []string      `json:"files"`
	Snippets     []Snippet     `json:"snippets"`
	Model        string        `json:"model"`
	SecurityInfo *SecurityInfo `json:"security_info"`
}

// ChunksResult is the payload of an EventChunks frame.
type ChunksResult struct {
	Chunks               json.RawMessage `json:"chunks"`
	AvailableFiles       []string        `json:"available_files"`
	PossibleFilesByTitle json.RawMessage `json:"possible_files_by_title"`
}

// QueryResult is the accumulated bundle a completed conversation resolves
// to: sources, the composed answer, and raw chunks when present.
type QueryResult struct {
	Immediate            *ImmediateResult `json:"immediate"`
	Answer               string           `json:"answer"`
	Chunks               json.RawMessage  `json:"chunks,omitempty"`
	AvailableFiles       []string         `json:"available_files,omitempty"`
	PossibleFilesByTitle json.RawMessage  `json:"possible_files_by_title,omitempty"`
	Model                string           `json:"model,omitempty"`
	SecurityInfo         *SecurityInfo    `json:"security_info,omitempty"`
}
