package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spyglass-cli/spyglass/internal/store"
	"github.com/spyglass-cli/spyglass/internal/types"
)

// tokenResponse is the /oauth/token/ payload.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// refreshCredentials exchanges the refresh token for a new access token and
// persists the rotated pair. Token refresh always talks to the control
// plane, never a region.
func (c *Client) refreshCredentials(ctx context.Context, creds *store.Credentials) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": creds.RefreshToken,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/oauth/token/", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &types.NetworkError{Endpoint: "/oauth/token/", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", &types.NetworkError{Endpoint: "/oauth/token/", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &types.AuthError{
			Reason: fmt.Sprintf("token refresh failed (status %d)", resp.StatusCode),
		}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", &types.AuthError{Reason: "token refresh returned no access token"}
	}

	next := store.Credentials{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
	}
	if next.RefreshToken == "" {
		// Some deployments do not rotate the refresh token.
		next.RefreshToken = creds.RefreshToken
	}
	if tr.ExpiresIn > 0 {
		next.ExpiresAt = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	if err := c.creds.SetCredentials(ctx, next); err != nil {
		return "", fmt.Errorf("failed to persist refreshed token: %w", err)
	}
	return next.AccessToken, nil
}
