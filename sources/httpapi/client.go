// Package httpapi reads session sources from the marketplace REST backend.
//
// Every endpoint wraps its payload in a {"data": ...} envelope. Profile- and
// actor-scoped endpoints need the actor's bearer token; the plan catalog and
// the category list are public.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PaulFidika/memberkit/catalog"
	"github.com/PaulFidika/memberkit/entitlements"
	"github.com/PaulFidika/memberkit/sources"
	"github.com/PaulFidika/memberkit/workspace"
	"golang.org/x/oauth2"
)

var (
	_ sources.Backend = (*Client)(nil)
	_ catalog.Source  = (*Client)(nil)
)

// maxBody caps decoded response bodies.
const maxBody = 4 << 20

// StatusError is a non-2xx backend response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpapi: %s %s: status %d", e.Method, e.Path, e.Code)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// Client talks to the marketplace backend.
type Client struct {
	base  *url.URL
	http  *http.Client
	token oauth2.TokenSource
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New builds an anonymous client for baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("httpapi: parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("httpapi: base url %q must be absolute", baseURL)
	}
	c := &Client{base: u, http: &http.Client{Timeout: 30 * time.Second}}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// WithToken returns a copy of c that authenticates as the bearer of token.
func (c *Client) WithToken(token string) *Client {
	if token == "" {
		return c.WithTokenSource(nil)
	}
	return c.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
}

// WithTokenSource returns a copy of c that authenticates with tokens from
// ts. A nil ts makes the copy anonymous.
func (c *Client) WithTokenSource(ts oauth2.TokenSource) *Client {
	cp := *c
	cp.token = ts
	return &cp
}

// client asks the token source on every request, so rotated tokens apply
// without rebuilding the client.
func (c *Client) client() *http.Client {
	if c.token == nil {
		return c.http
	}
	return &http.Client{
		Transport: &oauth2.Transport{Source: c.token, Base: c.http.Transport},
		Timeout:   c.http.Timeout,
	}
}

type envelope[T any] struct {
	Data T `json:"data"`
}

// get decodes the envelope at path into out. It reports false when the body
// is empty.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) (bool, error) {
	u := *c.base
	u.Path = c.base.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client().Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return false, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, &StatusError{Method: http.MethodGet, Path: path, Code: resp.StatusCode, Body: string(body)}
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return false, fmt.Errorf("httpapi: decode %s: %w", path, err)
	}
	return true, nil
}

func (c *Client) ListActivePlans(ctx context.Context) ([]entitlements.Plan, error) {
	var env envelope[[]entitlements.Plan]
	if _, err := c.get(ctx, "/plans", url.Values{"active": {"true"}}, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

func (c *Client) ListSubscriptions(ctx context.Context, profileID string) ([]entitlements.Subscription, error) {
	var env envelope[[]entitlements.Subscription]
	if _, err := c.get(ctx, "/profiles/"+url.PathEscape(profileID)+"/subscriptions", nil, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

func (c *Client) ListTransactions(ctx context.Context, profileID string) ([]sources.Transaction, error) {
	var env envelope[[]sources.Transaction]
	if _, err := c.get(ctx, "/profiles/"+url.PathEscape(profileID)+"/transactions", nil, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// GetStatusSummary returns nil when the backend has no summary (404, empty
// body or null data).
func (c *Client) GetStatusSummary(ctx context.Context, profileID string) (*entitlements.StatusSummary, error) {
	var env envelope[*entitlements.StatusSummary]
	ok, err := c.get(ctx, "/profiles/"+url.PathEscape(profileID)+"/membership-status", nil, &env)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil || !ok {
		return nil, err
	}
	return env.Data, nil
}

func (c *Client) GetContext(ctx context.Context, actorID string) (workspace.Graph, error) {
	var env envelope[workspace.Graph]
	if _, err := c.get(ctx, "/actors/"+url.PathEscape(actorID)+"/context", nil, &env); err != nil {
		return workspace.Graph{}, err
	}
	return env.Data, nil
}

func (c *Client) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	var env envelope[[]catalog.Category]
	if _, err := c.get(ctx, "/categories", nil, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}
