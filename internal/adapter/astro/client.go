package astro

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/arturoeanton/dyana-web/internal/port"
)

// maxBody caps how much of an upstream reply is read.
const maxBody = 8 << 20

// Client implements port.AstroService against the astrology REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new astrology service client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the configured service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Forward POSTs the JSON body to path and returns the raw reply, whatever its status.
func (c *Client) Forward(ctx context.Context, path string, body []byte, headers map[string]string) (*port.UpstreamResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("astro: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("astro %s: %w: %v", path, port.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("astro %s: read body: %w: %v", path, port.ErrUpstreamUnavailable, err)
	}

	return &port.UpstreamResponse{
		Status:      resp.StatusCode,
		Body:        data,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
