// Package api talks to the remote todo collection.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/idilsaglam/todosync/internal/model"
)

// DefaultBaseURL is the collection endpoint used for local development.
const DefaultBaseURL = "http://localhost:5000/api/todos"

// Error taxonomy for remote calls.
var (
	ErrUnreachable   = errors.New("api unreachable")
	ErrMalformedBody = errors.New("malformed response body")
)

// StatusError reports a non-2xx response.
type StatusError struct {
	Method string
	URL    string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.Code)
}

// Client is a thin REST client for the collection endpoint.
type Client struct {
	base *url.URL
	http *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient swaps the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds every request. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.http
		hc.Timeout = d
		c.http = &hc
	}
}

// New returns a Client for the collection at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	c := &Client{base: u, http: &http.Client{}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the collection endpoint.
func (c *Client) BaseURL() string { return c.base.String() }

// List fetches the whole collection.
func (c *Client) List(ctx context.Context) ([]model.Item, error) {
	body, err := c.do(ctx, http.MethodGet, c.base.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	items, err := model.DecodeList(body)
	if err != nil {
		return nil, fmt.Errorf("list: %w: %v", ErrMalformedBody, err)
	}
	return items, nil
}

type createRequest struct {
	Text string `json:"text"`
}

// Create posts a new item. An item carrying an id is sent whole; otherwise
// only its text goes out and the server picks the id.
func (c *Client) Create(ctx context.Context, it model.Item) (*model.Item, error) {
	var payload any = createRequest{Text: it.Text}
	if it.ID != "" {
		payload = it
	}
	body, err := c.do(ctx, http.MethodPost, c.base.String(), payload)
	if err != nil {
		return nil, fmt.Errorf("create: %w", err)
	}
	return decodeItem("create", body)
}

type completedRequest struct {
	Completed bool `json:"completed"`
}

// SetCompleted updates the completed flag of id.
func (c *Client) SetCompleted(ctx context.Context, id model.ID, completed bool) (*model.Item, error) {
	body, err := c.do(ctx, http.MethodPut, c.itemURL(id), completedRequest{Completed: completed})
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", id, err)
	}
	return decodeItem("update "+id.String(), body)
}

// Delete removes id from the collection.
func (c *Client) Delete(ctx context.Context, id model.ID) error {
	if _, err := c.do(ctx, http.MethodDelete, c.itemURL(id), nil); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

func (c *Client) itemURL(id model.ID) string {
	return c.base.JoinPath(url.PathEscape(id.String())).String()
}

func (c *Client) do(ctx context.Context, method, target string, payload any) ([]byte, error) {
	var rd io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnreachable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Method: method, URL: target, Code: resp.StatusCode}
	}
	return body, nil
}

// decodeItem returns nil for an empty body; servers are free not to echo.
func decodeItem(op string, body []byte) (*model.Item, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	var it model.Item
	if err := json.Unmarshal(body, &it); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrMalformedBody, err)
	}
	if it.ID == "" {
		return nil, fmt.Errorf("%s: %w: item without id", op, ErrMalformedBody)
	}
	return &it, nil
}
