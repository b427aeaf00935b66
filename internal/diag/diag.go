// Package diag reads the backend's development endpoints. These only feed
// an auxiliary "about" view, so failures are logged and swallowed.
package diag

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	appLog "timetable/internal/log"
)

// Error is one entry of the backend's recent error log.
type Error struct {
	Where string `json:"where"`
	What  string `json:"what"`
	When  string `json:"when"`
}

// Endpointer resolves API-relative paths; *fetch.Fetcher satisfies it.
type Endpointer interface {
	Endpoint(name string) *url.URL
}

type Client struct {
	http *http.Client
	api  Endpointer
}

func NewClient(c *http.Client, api Endpointer) *Client {
	if c == nil {
		c = http.DefaultClient
	}
	return &Client{http: c, api: api}
}

// Info returns the backend's build/runtime info. Empty on failure.
func (c *Client) Info(ctx context.Context) map[string]any {
	info := map[string]any{}
	if err := c.getJSON(ctx, "dev", &info); err != nil {
		appLog.Error("failed to get /dev", err)
		return map[string]any{}
	}
	return info
}

// Errors returns the backend's recent errors. Empty on failure.
func (c *Client) Errors(ctx context.Context) []Error {
	var body struct {
		Errors []Error `json:"errors"`
	}
	if err := c.getJSON(ctx, "errors", &body); err != nil {
		appLog.Error("failed to get /errors", err)
		return []Error{}
	}
	if body.Errors == nil {
		return []Error{}
	}
	return body.Errors
}

func (c *Client) getJSON(ctx context.Context, name string, v any) error {
	target := c.api.Endpoint(name).String()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %s", target, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
