// Package client talks to a running relay the way the browser frontend does:
// a cookie session over the JSON API, then one WebSocket per conversation.
package client

import (
	"bytes"
	"chat-relay/domain"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const defaultTimeout = 10 * time.Second

// Client keeps the session cookie between calls.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

func New(baseURL string) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q", baseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: parsed,
		http:    &http.Client{Jar: jar, Timeout: defaultTimeout},
	}, nil
}

// APIError is a non-2xx answer of the relay.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("relay answered %d: %s", e.Status, e.Message)
}

type authResponse struct {
	UserID   domain.UserID `json:"user_id"`
	Username string        `json:"username"`
}

// Register creates the account and opens a session.
func (c *Client) Register(ctx context.Context, username, password string) (domain.UserID, error) {
	var resp authResponse
	err := c.call(ctx, http.MethodPost, "/register", map[string]string{"username": username, "password": password}, &resp)
	return resp.UserID, err
}

// Login opens a session for an existing account.
func (c *Client) Login(ctx context.Context, username, password string) (domain.UserID, error) {
	var resp authResponse
	err := c.call(ctx, http.MethodPost, "/login", map[string]string{"username": username, "password": password}, &resp)
	return resp.UserID, err
}

// StartConversation returns the direct conversation with the friend, creating it when needed.
func (c *Client) StartConversation(ctx context.Context, friend domain.UserID) (domain.ConversationID, error) {
	var resp struct {
		ConversationID domain.ConversationID `json:"conversation_id"`
	}
	err := c.call(ctx, http.MethodPost, "/conversations", map[string]domain.UserID{"friend_id": friend}, &resp)
	return resp.ConversationID, err
}

func (c *Client) Messages(ctx context.Context, conversationID domain.ConversationID) ([]domain.Message, error) {
	var resp struct {
		Messages []domain.Message `json:"messages"`
	}
	err := c.call(ctx, http.MethodGet, "/conversations/"+conversationID.String()+"/messages", nil, &resp)
	return resp.Messages, err
}

func (c *Client) call(ctx context.Context, method, path string, body, dst any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var failure struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&failure)
		return &APIError{Status: resp.StatusCode, Message: failure.Error}
	}
	if dst == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

// Join opens the live stream of a conversation with the current session.
func (c *Client) Join(ctx context.Context, conversationID domain.ConversationID) (*Conn, error) {
	wsURL := *c.baseURL
	switch wsURL.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}
	wsURL.Path = strings.TrimRight(wsURL.Path, "/") + "/ws/" + conversationID.String()

	dialer := websocket.Dialer{Jar: c.http.Jar, HandshakeTimeout: defaultTimeout}
	conn, resp, err := dialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return nil, fmt.Errorf("join %s: %w", conversationID, err)
	}
	return &Conn{conn: conn}, nil
}

// Conn is a joined conversation. Send and Receive may run in two goroutines.
type Conn struct {
	conn *websocket.Conn
}

func (c *Conn) Send(content string) error {
	payload, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Receive blocks until the next event of the conversation.
func (c *Conn) Receive() (domain.OutgoingEvent, error) {
	var evt domain.OutgoingEvent
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return evt, err
	}
	return evt, json.Unmarshal(data, &evt)
}

func (c *Conn) Close() error {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}
