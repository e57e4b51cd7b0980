// Package api is the authenticated JSON client for the tracker service.
//
// The client is region-aware: endpoints that name an organization are routed
// to that org's regional API root, everything else goes to the control
// plane. Responses are retried within tight bounds (see retry.go) and a 401
// triggers one token refresh before surfacing an auth error.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/spyglass-cli/spyglass/internal/store"
	"github.com/spyglass-cli/spyglass/internal/types"
)

const (
	// DefaultTimeout bounds every request, including retries of the body read.
	DefaultTimeout = 30 * time.Second

	// retryMarkerHeader marks a request that already went through the
	// 401-refresh path, so the response hook cannot loop.
	retryMarkerHeader = "x-spy-retry"

	// refreshWindow is how close to expiry a token may get before the
	// client refreshes it preemptively.
	refreshWindow = 2 * time.Minute

	maxResponseSize = 50 * 1024 * 1024
)

// orgScopedRe matches endpoints that name an org in their path and must be
// routed to that org's region.
var orgScopedRe = regexp.MustCompile(`^/(?:organizations|projects)/([^/]+)(?:/|$)`)

// CredentialSource is the slice of the store the client needs for tokens.
type CredentialSource interface {
	GetCredentials(ctx context.Context) (*store.Credentials, error)
	SetCredentials(ctx context.Context, c store.Credentials) error
}

// RegionRouter resolves an org slug to its regional API root. Wired after
// construction because the region directory itself talks through the client.
type RegionRouter interface {
	APIRootForOrg(ctx context.Context, org string) (string, error)
}

// Client executes authenticated requests against the service.
type Client struct {
	baseURL string // control-plane API root, no trailing slash
	creds   CredentialSource
	router  RegionRouter
	http    *http.Client
}

// NewClient builds a client rooted at the control-plane URL.
func NewClient(baseURL string, creds CredentialSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
}

// SetRouter installs the region router. Until set, every request goes to the
// control plane (correct for single-region self-hosted deployments).
func (c *Client) SetRouter(r RegionRouter) { c.router = r }

// WithHTTPClient swaps the underlying HTTP client; used by tests.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	dup := *c
	dup.http = h
	return &dup
}

// BaseURL returns the control-plane API root.
func (c *Client) BaseURL() string { return c.baseURL }

// Response is a decoded-enough HTTP response: status, body, and the headers
// pagination needs.
type Response struct {
	Status int
	Body   []byte
	Header http.Header
}

// NextCursor extracts the pagination cursor from the response's Link header.
// ok is false when the listing is exhausted.
func (r *Response) NextCursor() (string, bool) {
	return parseNextCursor(r.Header.Get("Link"))
}

// Do executes one API request. endpoint is service-relative and must begin
// with "/". Array-valued params repeat the key. A nil body sends no payload;
// otherwise body is JSON-encoded.
func (c *Client) Do(ctx context.Context, method, endpoint string, params url.Values, body any) (*Response, error) {
	root, err := c.rootFor(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return c.doAt(ctx, method, root, endpoint, params, body)
}

// DoAt executes a request against an explicit API root, bypassing region
// routing. The region directory uses this to probe regions it is still
// discovering.
func (c *Client) DoAt(ctx context.Context, method, root, endpoint string, params url.Values, body any) (*Response, error) {
	return c.doAt(ctx, method, strings.TrimRight(root, "/"), endpoint, params, body)
}

// GetAt is DoAt with method GET and a JSON-decoded result.
func (c *Client) GetAt(ctx context.Context, root, endpoint string, params url.Values, out any) (*Response, error) {
	resp, err := c.DoAt(ctx, http.MethodGet, root, endpoint, params, nil)
	if err != nil {
		return nil, err
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return nil, fmt.Errorf("failed to decode %s response: %w", endpoint, err)
		}
	}
	return resp, nil
}

func (c *Client) doAt(ctx context.Context, method, root, endpoint string, params url.Values, body any) (*Response, error) {
	var err error

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	token, err := c.currentToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, method, root, endpoint, params, payload, token, false)
	if err != nil {
		return nil, err
	}

	if resp.Status == http.StatusUnauthorized {
		// One refresh-and-retry, flagged so the hook cannot recurse.
		newToken, refreshErr := c.forceRefresh(ctx)
		if refreshErr != nil {
			// Manual token or refresh not possible: surface the original 401.
			return nil, &types.AuthError{Reason: "access token rejected (try `spy login`)"}
		}
		resp, err = c.send(ctx, method, root, endpoint, params, payload, newToken, true)
		if err != nil {
			return nil, err
		}
		if resp.Status == http.StatusUnauthorized {
			return nil, &types.AuthError{Reason: "access token rejected after refresh"}
		}
	}

	if resp.Status < 200 || resp.Status >= 300 {
		return nil, &types.ApiError{
			Status:   resp.Status,
			Detail:   extractDetail(resp.Body),
			Endpoint: endpoint,
		}
	}
	return resp, nil
}

// Get is Do with method GET and a JSON-decoded result.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values, out any) (*Response, error) {
	resp, err := c.Do(ctx, http.MethodGet, endpoint, params, nil)
	if err != nil {
		return nil, err
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return nil, fmt.Errorf("failed to decode %s response: %w", endpoint, err)
		}
	}
	return resp, nil
}

// rootFor picks the API root for an endpoint: regional for org-scoped paths
// when a router is installed, control plane otherwise.
func (c *Client) rootFor(ctx context.Context, endpoint string) (string, error) {
	if c.router == nil {
		return c.baseURL, nil
	}
	m := orgScopedRe.FindStringSubmatch(endpoint)
	if m == nil {
		return c.baseURL, nil
	}
	root, err := c.router.APIRootForOrg(ctx, m[1])
	if err != nil {
		return "", err
	}
	if root == "" {
		return c.baseURL, nil
	}
	return strings.TrimRight(root, "/"), nil
}

// send performs the HTTP exchange with bounded retry (see retry.go).
func (c *Client) send(ctx context.Context, method, root, endpoint string, params url.Values, payload []byte, token string, retried bool) (*Response, error) {
	fullURL := root + endpoint
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	attempt := func() (*Response, error) {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if retried {
			req.Header.Set(retryMarkerHeader, "1")
		}

		httpResp, err := c.http.Do(req)
		if err != nil {
			return nil, &types.NetworkError{Endpoint: endpoint, Err: err}
		}
		defer func() { _ = httpResp.Body.Close() }()

		respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
		if err != nil {
			return nil, &types.NetworkError{Endpoint: endpoint, Err: err}
		}
		return &Response{Status: httpResp.StatusCode, Body: respBody, Header: httpResp.Header}, nil
	}

	return withRetry(ctx, method, attempt)
}

// currentToken returns the access token, refreshing preemptively when the
// token is close to expiry and a refresh token exists.
func (c *Client) currentToken(ctx context.Context) (string, error) {
	creds, err := c.creds.GetCredentials(ctx)
	if err != nil {
		return "", err
	}
	if creds == nil || creds.AccessToken == "" {
		return "", &types.AuthError{Reason: "not logged in (run `spy login`)"}
	}
	if creds.HasRefresh() && creds.ExpiresWithin(refreshWindow) {
		if token, err := c.refreshCredentials(ctx, creds); err == nil {
			return token, nil
		}
		// Preemptive refresh failed; the old token may still work, and the
		// 401 path will retry the refresh if it does not.
	}
	return creds.AccessToken, nil
}

// forceRefresh refreshes regardless of expiry. Fails for manual tokens.
func (c *Client) forceRefresh(ctx context.Context) (string, error) {
	creds, err := c.creds.GetCredentials(ctx)
	if err != nil {
		return "", err
	}
	if creds == nil || !creds.HasRefresh() {
		return "", fmt.Errorf("no refresh token")
	}
	return c.refreshCredentials(ctx, creds)
}

// extractDetail pulls the server's error message from a JSON body.
func extractDetail(body []byte) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Detail
}
