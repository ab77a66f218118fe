package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/gosuda/nestia-chat/chat"
)

// StatusError is returned when the relay answers with a non-2xx status.
type StatusError struct {
	Method string
	URL    string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.Code)
}

// Client talks to the relay REST API.
type Client struct {
	messageURL string
	recentURL  string
	hc         *http.Client
}

// NewClient builds a client for the API rooted at apiURL. A nil hc uses
// http.DefaultClient.
func NewClient(apiURL string, hc *http.Client) (*Client, error) {
	if _, err := url.ParseRequestURI(apiURL); err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	messageURL, err := url.JoinPath(apiURL, "message")
	if err != nil {
		return nil, fmt.Errorf("join message path: %w", err)
	}
	recentURL, err := url.JoinPath(apiURL, "recent")
	if err != nil {
		return nil, fmt.Errorf("join recent path: %w", err)
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{messageURL: messageURL, recentURL: recentURL, hc: hc}, nil
}

// Send posts p to /message. The response body is discarded.
func (c *Client) Send(ctx context.Context, p chat.Payload) error {
	body, err := chat.MarshalPayload(p)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.messageURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: http.MethodPost, URL: c.messageURL, Code: resp.StatusCode}
	}
	return nil
}

// Recent fetches the relay's recent messages from /recent, oldest first.
func (c *Client) Recent(ctx context.Context) ([]chat.Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.recentURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get recent: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Method: http.MethodGet, URL: c.recentURL, Code: resp.StatusCode}
	}

	var out []chat.Payload
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode recent: %w", err)
	}
	return out, nil
}
