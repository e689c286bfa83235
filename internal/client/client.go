// Package client talks to a running segcheck server, over the session
// WebSocket for annotation requests and over HTTP for the operator API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"segcheck/internal/protocol"
)

// ResponseError is a response that carried an error.
type ResponseError struct {
	MessageType protocol.MessageType
	Kind        string
	Message     string
}

func (e *ResponseError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("%s: %s", e.MessageType, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.MessageType, e.Message, e.Kind)
}

// Client is one annotation session. Requests are serialized.
type Client struct {
	mu      sync.Mutex
	ws      *websocket.Conn
	id      string
	notices []string
}

// Dial opens a session against the server at addr (host:port or an http(s)
// base URL). An empty clientID lets the server assign one.
func Dial(ctx context.Context, addr, clientID string) (*Client, error) {
	u, err := endpoint(addr, "/ws")
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if clientID != "" {
		u.RawQuery = url.Values{"client_id": {clientID}}.Encode()
	}

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	ws, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}
	return &Client{ws: ws, id: clientID}, nil
}

// ID returns the session id, learned from the first server frame when the
// server assigned it.
func (c *Client) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// Notices returns info messages received while waiting for replies.
func (c *Client) Notices() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.notices...)
}

// Close ends the session, which releases any segment it holds.
func (c *Client) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.ws.Close()
}

// Do sends one request and waits for its reply. Keep-alive and info frames
// that arrive meanwhile are consumed. Error replies are returned as
// *ResponseError together with the response.
func (c *Client) Do(ctx context.Context, messageType protocol.MessageType, payload any) (protocol.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req := protocol.Request{ClientID: c.id, MessageType: messageType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return protocol.Response{}, fmt.Errorf("encode %s payload: %w", messageType, err)
		}
		text, _ := json.Marshal(string(raw))
		req.Payload = text
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(30 * time.Second)
	}
	_ = c.ws.SetWriteDeadline(deadline)
	if err := c.ws.WriteJSON(req); err != nil {
		return protocol.Response{}, fmt.Errorf("send %s: %w", messageType, err)
	}

	for {
		_ = c.ws.SetReadDeadline(deadline)
		var resp protocol.Response
		if err := c.ws.ReadJSON(&resp); err != nil {
			if ctx.Err() != nil {
				return protocol.Response{}, ctx.Err()
			}
			return protocol.Response{}, fmt.Errorf("await %s reply: %w", messageType, err)
		}
		if c.id == "" && resp.ClientID != "" {
			c.id = resp.ClientID
		}
		switch resp.MessageType {
		case protocol.TypeKeepAlive:
			continue
		case protocol.TypeInfo:
			if resp.Error == "" {
				c.notices = append(c.notices, resp.Info)
				continue
			}
		}
		if resp.Error != "" {
			return resp, &ResponseError{MessageType: resp.MessageType, Kind: resp.ErrorKind, Message: resp.Error}
		}
		return resp, nil
	}
}

// Next requests the next segment. ok is false when nothing was eligible.
func (c *Client) Next(ctx context.Context, query protocol.Query) (protocol.AudioChunkPayload, bool, error) {
	resp, err := c.Do(ctx, protocol.TypeNext, query)
	if err != nil {
		return protocol.AudioChunkPayload{}, false, err
	}
	return decodeAssignment(resp)
}

// SaveUnlockAndNext saves anno, releases it and requests the next segment.
func (c *Client) SaveUnlockAndNext(ctx context.Context, req protocol.SaveUnlockAndNext) (protocol.AudioChunkPayload, bool, error) {
	resp, err := c.Do(ctx, protocol.TypeSaveUnlockAndNext, req)
	if err != nil {
		return protocol.AudioChunkPayload{}, false, err
	}
	return decodeAssignment(resp)
}

// Unlock releases one held segment.
func (c *Client) Unlock(ctx context.Context, id, user string) error {
	_, err := c.Do(ctx, protocol.TypeUnlock, protocol.UnlockPayload{ID: id, UserName: user})
	return err
}

// Stats requests the counters over the session.
func (c *Client) Stats(ctx context.Context) (map[string]int, error) {
	resp, err := c.Do(ctx, protocol.TypeStats, nil)
	if err != nil {
		return nil, err
	}
	var stats map[string]int
	if err := resp.DecodePayload(&stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func decodeAssignment(resp protocol.Response) (protocol.AudioChunkPayload, bool, error) {
	switch resp.MessageType {
	case protocol.TypeNoAudioChunk:
		return protocol.AudioChunkPayload{}, false, nil
	case protocol.TypeAudioChunk:
		var payload protocol.AudioChunkPayload
		if err := resp.DecodePayload(&payload); err != nil {
			return protocol.AudioChunkPayload{}, false, err
		}
		return payload, true, nil
	default:
		return protocol.AudioChunkPayload{}, false, fmt.Errorf("unexpected reply %s", resp.MessageType)
	}
}

// endpoint resolves addr to an absolute URL with the given path.
func endpoint(addr, path string) (*url.URL, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("server address is required")
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("parse server address: %w", err)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u, nil
}
