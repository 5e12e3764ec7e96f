package wikiai

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/wikiai/kbclient/pkg/client"
	"github.com/wikiai/kbclient/pkg/realtime"
	"github.com/wikiai/kbclient/pkg/types"
)

// QueryService runs knowledge-base queries over HTTP or the realtime
// WebSocket protocol.
type QueryService struct {
	s *Service
}

// QueryOptions tune a query. A zero value asks for a humanized answer in a
// fresh session.
type QueryOptions struct {
	// SessionID continues an existing conversation. Empty starts a new
	// session with a generated ID.
	SessionID string

	// Model selects the answering model; empty lets the backend choose.
	Model string

	// RawChunks disables humanization; the backend streams retrieval chunks
	// instead of a composed answer.
	RawChunks bool

	// AgentMode enables the backend's agentic retrieval pipeline
	// (realtime only).
	AgentMode bool

	// OnEvent observes each realtime protocol frame (realtime only).
	OnEvent realtime.EventHandler
}

// queryBody is the POST /query payload.
type queryBody struct {
	Question  string  `json:"question"`
	SessionID *string `json:"session_id"`
	Model     *string `json:"model"`
	Humanize  bool    `json:"humanize"`
}

// QueryResponse is the payload of a synchronous query.
type QueryResponse struct {
	Immediate    *types.ImmediateResult `json:"immediate,omitempty"`
	Overview     string                 `json:"overview,omitempty"`
	Model        string                 `json:"model,omitempty"`
	SecurityInfo *types.SecurityInfo    `json:"security_info,omitempty"`
}

// Ask runs a synchronous query over HTTP.
func (q *QueryService) Ask(ctx context.Context, token, question string, opts QueryOptions) (*QueryResponse, error) {
	return do[QueryResponse](ctx, q.s, client.Request{
		URL:    "/query",
		Method: http.MethodPost,
		Token:  token,
		Body: queryBody{
			Question:  question,
			SessionID: nullable(opts.SessionID),
			Model:     nullable(opts.Model),
			Humanize:  !opts.RawChunks,
		},
	})
}

// Stream runs a query over the realtime WebSocket protocol, invoking
// opts.OnEvent for every frame and returning the accumulated bundle on
// completion.
func (q *QueryService) Stream(ctx context.Context, token, question string, opts QueryOptions) (*types.QueryResult, error) {
	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return q.s.realtime.Query(ctx, token, types.QueryRequest{
		Question:    question,
		SessionID:   &sessionID,
		Model:       nullable(opts.Model),
		Humanize:    !opts.RawChunks,
		AIAgentMode: opts.AgentMode,
	}, opts.OnEvent)
}

// nullable maps an empty string to JSON null.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
