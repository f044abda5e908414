package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mcoot/tictactoe-go/internal/api/apierr"
	"github.com/mcoot/tictactoe-go/internal/protocol"
)

// Frame is any server message: a response, an error or an event
type Frame struct {
	Type      string           `json:"type"`
	ID        string           `json:"id,omitempty"`
	Data      json.RawMessage  `json:"data,omitempty"`
	Error     *apierr.APIError `json:"error,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Welcome is the first frame sent on every connection
type Welcome struct {
	ConnectionID string `json:"connectionId"`
	ServerInfo   struct {
		Version        string `json:"version"`
		MaxMessageSize int64  `json:"maxMessageSize"`
	} `json:"serverInfo"`
}

// RequestError is an error reply from the server
type RequestError struct {
	apierr.APIError
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// Client speaks the game protocol over a single websocket connection
type Client struct {
	conn    *websocket.Conn
	timeout time.Duration
	welcome Welcome

	// OnEvent receives the events read while waiting for a reply
	OnEvent func(Frame)
}

// Dial connects to the server and reads the welcome frame
func Dial(ctx context.Context, serverURL string, timeout time.Duration) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.DialContext(ctx, serverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}

	c := &Client{conn: conn, timeout: timeout}
	frame, err := c.next(ctx)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if frame.Type != "connection_established" {
		_ = conn.Close()
		return nil, fmt.Errorf("unexpected first message %q", frame.Type)
	}
	_ = json.Unmarshal(frame.Data, &c.welcome)
	return c, nil
}

// Welcome returns the server's welcome frame
func (c *Client) Welcome() Welcome {
	return c.welcome
}

// Authenticate binds the connection to a player
func (c *Client) Authenticate(ctx context.Context, player, token string) (*protocol.AuthenticateResponse, error) {
	var resp protocol.AuthenticateResponse
	req := protocol.AuthenticateRequest{PlayerID: player, Token: token}
	if err := c.Request(ctx, protocol.TypeAuthenticate, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Request sends a request and waits for its reply, decoding the payload into result
func (c *Client) Request(ctx context.Context, msgType string, data, result any) error {
	if data == nil {
		data = struct{}{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	id := uuid.NewString()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	if err := c.conn.WriteJSON(protocol.Request{Type: msgType, ID: id, Data: payload}); err != nil {
		return fmt.Errorf("send failed: %w", err)
	}

	for {
		frame, err := c.next(ctx)
		if err != nil {
			return err
		}
		if frame.ID != id {
			if frame.ID == "" && frame.Type == protocol.TypeError && frame.Error != nil {
				// Rejected before the server could read the request id
				return &RequestError{APIError: *frame.Error}
			}
			if c.OnEvent != nil && frame.ID == "" {
				c.OnEvent(frame)
			}
			continue
		}
		if frame.Type == protocol.TypeError && frame.Error != nil {
			return &RequestError{APIError: *frame.Error}
		}
		if result != nil && len(frame.Data) > 0 {
			if err := json.Unmarshal(frame.Data, result); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}
		}
		return nil
	}
}

// ReadEvent blocks until the next frame arrives or ctx is done
func (c *Client) ReadEvent(ctx context.Context) (Frame, error) {
	return c.next(ctx)
}

func (c *Client) next(ctx context.Context) (Frame, error) {
	deadline := time.Time{}
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	_ = c.conn.SetReadDeadline(deadline)

	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	var raw json.RawMessage
	if err := c.conn.ReadJSON(&raw); err != nil {
		if ctx.Err() != nil {
			return Frame{}, ctx.Err()
		}
		return Frame{}, fmt.Errorf("read failed: %w", err)
	}

	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return Frame{}, fmt.Errorf("invalid frame: %w", err)
	}
	// The welcome frame carries its fields at the top level
	if frame.Type == "connection_established" {
		frame.Data = raw
	}
	return frame, nil
}

// Close sends a normal closure and closes the connection
func (c *Client) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.conn.Close()
}
