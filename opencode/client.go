// Package opencode integrates the OpenCode server as a proxied agent: no
// subprocess is spawned, the backend owns the session and streams events
// over SSE. This package holds the HTTP client for the backend's REST
// surface and the converter for its event frames.
package opencode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultBaseURL is where a locally running OpenCode server listens.
const DefaultBaseURL = "http://127.0.0.1:4096"

// Client talks to one OpenCode server. All request paths are centralized
// here so a backend API change touches exactly one file.
type Client struct {
	baseURL string
	http    *http.Client
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// NewClient builds a client for the server at baseURL. An empty baseURL
// falls back to DefaultBaseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session is the backend's session descriptor.
type Session struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// CreateSession creates a backend session and returns its descriptor.
func (c *Client) CreateSession(ctx context.Context) (*Session, error) {
	var s Session
	if err := c.do(ctx, http.MethodPost, "/session", map[string]any{}, &s); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if s.ID == "" {
		return nil, fmt.Errorf("create session: backend returned no id")
	}
	return &s, nil
}

// SendMessage posts one user text message to a backend session. A non-empty
// mode selects the backend agent mode (e.g. "build", "plan") for the turn.
// The reply streams back through the event feed, not this call, so the
// response body is discarded.
func (c *Client) SendMessage(ctx context.Context, sessionID, text, mode string) error {
	body := map[string]any{
		"parts": []map[string]string{{"type": "text", "text": text}},
	}
	if mode != "" {
		body["mode"] = mode
	}
	path := "/session/" + sessionID + "/message"
	if err := c.do(ctx, http.MethodPost, path, body, nil); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// ReplyPermission answers a permission prompt. decision "allow" grants it
// once; anything else rejects it.
func (c *Client) ReplyPermission(ctx context.Context, sessionID, permissionID, decision string) error {
	response := "reject"
	if decision == "allow" {
		response = "once"
	}
	path := "/session/" + sessionID + "/permissions/" + permissionID
	body := map[string]string{"response": response}
	if err := c.do(ctx, http.MethodPost, path, body, nil); err != nil {
		return fmt.Errorf("reply permission: %w", err)
	}
	return nil
}

// Events opens the server-wide event feed. The caller reads SSE frames from
// the returned body and must close it; canceling ctx also terminates the
// stream. Frames carry events for every backend session, so consumers
// filter by session id.
func (c *Client) Events(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/event", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	// No client timeout here: the stream stays open for the session's
	// lifetime.
	resp, err := (&http.Client{Transport: c.http.Transport}).Do(req)
	if err != nil {
		return nil, fmt.Errorf("open event stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("open event stream: backend returned %s", resp.Status)
	}
	return resp.Body, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("backend returned %s: %s", resp.Status, bytes.TrimSpace(msg))
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
