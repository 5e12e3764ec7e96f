// Package realtime implements the WebSocket query protocol: a single-shot
// conversation that sends one query message and consumes a typed sequence of
// server-pushed events until a terminal complete or error frame.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/wikiai/kbclient/pkg/types"
)

const (
	// DefaultHandshakeTimeout bounds the connection phase.
	DefaultHandshakeTimeout = 5 * time.Second

	queryPath = "/ws/query"
)

// EventHandler observes every inbound frame, terminal ones included. It runs
// on the read loop goroutine and must not block.
type EventHandler func(types.QueryEvent)

// Config configures the realtime client.
type Config struct {
	// WSURL is the WebSocket base URL (ws:// or wss://). Required.
	WSURL string

	// HandshakeTimeout bounds the connection phase. Default 5s.
	HandshakeTimeout time.Duration

	// Logger receives diagnostic events. Default: disabled.
	Logger zerolog.Logger
}

// Client dials one socket per query conversation.
type Client struct {
	wsURL  string
	dialer websocket.Dialer
	log    zerolog.Logger
}

// New creates a realtime client.
func New(cfg Config) *Client {
	timeout := cfg.HandshakeTimeout
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	return &Client{
		wsURL: cfg.WSURL,
		dialer: websocket.Dialer{
			HandshakeTimeout: timeout,
		},
		log: cfg.Logger,
	}
}

// outcome is the settled result of one conversation.
type outcome struct {
	result *types.QueryResult
	err    error
}

// Query runs one conversation: connect, send the query message, accumulate
// events until a terminal frame, and return the bundle. Cancelling ctx
// closes the socket and returns ctx.Err(); the read loop goes quiet, so no
// frame received after settlement is processed.
func (c *Client) Query(ctx context.Context, token string, req types.QueryRequest, onEvent EventHandler) (*types.QueryResult, error) {
	target := c.wsURL + queryPath + "?token=" + url.QueryEscape(token)

	conn, resp, err := c.dialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("websocket connect failed (status %d): %w", resp.StatusCode, err)
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, fmt.Errorf("websocket connect timeout after %s: %w", c.dialer.HandshakeTimeout, err)
		}
		return nil, fmt.Errorf("websocket connect failed: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	// The server expects exactly one client→server message per connection.
	if err := conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("send query: %w", err)
	}

	settled := make(chan outcome, 1)
	go c.readLoop(conn, onEvent, settled)

	select {
	case <-ctx.Done():
		// Abandon the conversation; the read loop exits on the closed conn.
		_ = conn.Close()
		return nil, ctx.Err()
	case out := <-settled:
		return out.result, out.err
	}
}

// readLoop consumes frames until the first terminal event, then settles
// exactly once and returns without reading further. Duplicate terminal
// frames after settlement are therefore never observed.
func (c *Client) readLoop(conn *websocket.Conn, onEvent EventHandler, settled chan<- outcome) {
	var (
		immediate *types.ImmediateResult
		overview  string
		chunks    *types.ChunksResult
	)

	for {
		var event types.QueryEvent
		if err := conn.ReadJSON(&event); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				settled <- outcome{err: fmt.Errorf("connection closed before completion")}
			} else {
				settled <- outcome{err: fmt.Errorf("websocket connection error: %w", err)}
			}
			return
		}

		if onEvent != nil {
			onEvent(event)
		}

		switch event.Type {
		case types.EventStatus:
			c.log.Debug().Str("status", event.Message).Msg("query progress")

		case types.EventImmediate:
			var data types.ImmediateResult
			if err := json.Unmarshal(event.Data, &data); err != nil {
				c.log.Warn().Err(err).Msg("malformed immediate payload")
				continue
			}
			immediate = &data

		case types.EventOverview:
			if err := json.Unmarshal(event.Data, &overview); err != nil {
				// Some backends send the overview as a bare string already.
				overview = string(event.Data)
			}

		case types.EventChunks:
			var data types.ChunksResult
			if err := json.Unmarshal(event.Data, &data); err != nil {
				c.log.Warn().Err(err).Msg("malformed chunks payload")
				continue
			}
			chunks = &data

		case types.EventError:
			message := event.Message
			if message == "" {
				message = "websocket query error"
			}
			c.closeWith(conn, websocket.CloseInternalServerErr)
			settled <- outcome{err: fmt.Errorf("%s", message)}
			return

		case types.EventComplete:
			c.closeWith(conn, websocket.CloseNormalClosure)
			settled <- outcome{result: buildResult(immediate, overview, chunks)}
			return

		default:
			c.log.Debug().Str("type", string(event.Type)).Msg("unknown event type")
		}
	}
}

func (c *Client) closeWith(conn *websocket.Conn, code int) {
	deadline := time.Now().Add(time.Second)
	if err := conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""), deadline); err != nil {
		c.log.Debug().Err(err).Msg("failed to send close frame")
	}
}

func buildResult(immediate *types.ImmediateResult, overview string, chunks *types.ChunksResult) *types.QueryResult {
	result := &types.QueryResult{
		Immediate: immediate,
		Answer:    overview,
	}
	if immediate != nil {
		result.Model = immediate.Model
		result.SecurityInfo = immediate.SecurityInfo
	}
	if chunks != nil {
		result.Chunks = chunks.Chunks
		result.AvailableFiles = chunks.AvailableFiles
		result.PossibleFilesByTitle = chunks.PossibleFilesByTitle
	}
	return result
}
