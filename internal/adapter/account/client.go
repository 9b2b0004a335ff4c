// Package account talks to the identity provider: it issues anonymous guest
// tokens and reads the caller's credits state.
package account

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/arturoeanton/dyana-web/internal/domain"
	"github.com/arturoeanton/dyana-web/internal/port"
)

// Config holds the identity provider endpoints.
type Config struct {
	BaseURL     string // e.g. http://127.0.0.1:8001
	CreditsPath string // e.g. /credits/state
	GuestPath   string // e.g. /auth/anonymous
}

// Client implements port.CreditsFetcher and port.GuestIssuer.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a new identity provider client.
func NewClient(cfg Config, timeout time.Duration) *Client {
	return &Client{cfg: cfg, httpClient: &http.Client{Timeout: timeout}}
}

// FetchCreditsState reads the role and balances bound to token.
func (c *Client) FetchCreditsState(ctx context.Context, token string) (*domain.CreditsState, error) {
	if token == "" {
		return nil, port.ErrNoToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+c.cfg.CreditsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("credits: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("credits: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("credits decode: %w", port.ErrUpstreamMalformed)
	}
	state := domain.ParseCreditsState(raw)
	return &state, nil
}

// IssueGuestToken asks the provider for a new anonymous identity.
func (c *Client) IssueGuestToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+c.cfg.GuestPath, bytes.NewReader([]byte(`{}`)))
	if err != nil {
		return "", fmt.Errorf("guest: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("guest: %w", err)
	}

	var resp struct {
		Token       string `json:"token"`
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("guest decode: %w", port.ErrUpstreamMalformed)
	}
	if resp.Token != "" {
		return resp.Token, nil
	}
	if resp.AccessToken != "" {
		return resp.AccessToken, nil
	}
	return "", fmt.Errorf("guest: empty token: %w", port.ErrUpstreamMalformed)
}

// do executes req and maps transport and status failures onto port errors.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", port.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", port.ErrNetwork, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, port.ErrAuthFailure
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: status %d", port.ErrUpstreamUnavailable, resp.StatusCode)
	}
	return body, nil
}
